package leakcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/leaksmap/breach"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New("test_key",
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL+"/api/public"),
		WithRetry(1, time.Millisecond),
		WithRateLimit(0, 0),
	)
	require.NoError(t, err)
	return c
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	c, err := New("secret", WithBaseURL("https://example.test/api/public"))
	require.NoError(t, err)

	resource, params := c.CacheKey("test@example.com")
	assert.Equal(t, "https://example.test/api/public", resource)
	assert.Equal(t, map[string]string{"key": "secret", "check": "test@example.com"}, params)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public", r.URL.Path)
		assert.Equal(t, "test_key", r.URL.Query().Get("key"))
		assert.Equal(t, "test@example.com", r.URL.Query().Get("check"))
		_, _ = w.Write([]byte(`{
			"success": true,
			"found": 2,
			"fields": ["username", "password"],
			"sources": [
				{"name": "LinkedIn", "date": "2021-04"},
				{"name": "Evony.com", "date": "2016-07", "data_type": ["email", "password"]}
			]
		}`))
	}))
	defer srv.Close()

	records, err := newTestClient(t, srv).Search(context.Background(), "test@example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, breach.Record{
		ServiceName: "LinkedIn",
		BreachDate:  "2021-04-01",
		Location:    breach.Unknown,
		DataType:    breach.Unknown,
		Description: "Data breach detected at LinkedIn",
		Source:      Name,
	}, records[0])
	assert.Equal(t, "email, password", records[1].DataType)
	assert.Equal(t, "2016-07-01", records[1].BreachDate)
}

func TestSearchUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jdoe_1984", r.URL.Query().Get("check"))
		_, _ = w.Write([]byte(`{"success":true,"found":1,"sources":[{"name":"Gawker.com","date":"2010-12"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	records, err := c.SearchUsername(context.Background(), "jdoe_1984")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Gawker.com", records[0].ServiceName)
	assert.Equal(t, "2010-12-01", records[0].BreachDate)

	resource, params := c.UsernameCacheKey("jdoe_1984")
	assert.Equal(t, srv.URL+"/api/public", resource)
	assert.Equal(t, "jdoe_1984", params["check"])
}

func TestSearchHTTPError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"success":false,"error":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Search(context.Background(), "test@example.com")

	var pe *breach.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, Name, pe.Provider)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Search(context.Background(), "test@example.com")

	var pe *breach.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "decode response")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []breach.Record
		wantErr bool
	}{
		{
			name: "missing fields get defaults",
			body: `{"success": true, "sources": [{"name": "Foo"}]}`,
			want: []breach.Record{{
				ServiceName: "Foo",
				BreachDate:  breach.Unknown,
				Location:    breach.Unknown,
				DataType:    breach.Unknown,
				Description: "Data breach detected at Foo",
				Source:      Name,
			}},
		},
		{
			name: "nameless source",
			body: `{"success": true, "sources": [{"date": "2019"}]}`,
			want: []breach.Record{{
				ServiceName: breach.Unknown,
				BreachDate:  "2019-01-01",
				Location:    breach.Unknown,
				DataType:    breach.Unknown,
				Description: breach.DefaultDescription,
				Source:      Name,
			}},
		},
		{
			name: "full source",
			body: `{"success": true, "sources": [{"name": "Bar", "date": "2020-02-03", "location": "US", "data_type": "email,ip", "description": "Forum dump"}]}`,
			want: []breach.Record{{
				ServiceName: "Bar",
				BreachDate:  "2020-02-03",
				Location:    "US",
				DataType:    "email, ip",
				Description: "Forum dump",
				Source:      Name,
			}},
		},
		{
			name: "null fields",
			body: `{"success": true, "sources": [{"name": null, "date": null, "data_type": null}]}`,
			want: []breach.Record{{
				ServiceName: breach.Unknown,
				BreachDate:  breach.Unknown,
				Location:    breach.Unknown,
				DataType:    breach.Unknown,
				Description: breach.DefaultDescription,
				Source:      Name,
			}},
		},
		{
			name: "found nothing",
			body: `{"success": true, "found": 0, "sources": []}`,
			want: []breach.Record{},
		},
		{
			name: "not found is empty",
			body: `{"success": false, "error": "Not found"}`,
			want: []breach.Record{},
		},
		{
			name: "unexpected data_type shapes",
			body: `{"success": true, "sources": [
				{"name": "A", "data_type": 42},
				{"name": "B", "data_type": [{"type": "email"}, "password", null]},
				{"name": "C", "data_type": {"email": true}}
			]}`,
			want: []breach.Record{
				breach.NewRecord(Name, "A", "", "", nil, "Data breach detected at A"),
				breach.NewRecord(Name, "B", "", "", []string{"password"}, "Data breach detected at B"),
				breach.NewRecord(Name, "C", "", "", nil, "Data breach detected at C"),
			},
		},
		{
			name:    "other rejection",
			body:    `{"success": false, "error": "Limit reached"}`,
			wantErr: true,
		},
		{
			name:    "bare rejection",
			body:    `{"success": false}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
