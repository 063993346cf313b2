package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/leaksmap/breach"
	"github.com/briangreenhill/leaksmap/internal/aggregator"
	appmw "github.com/briangreenhill/leaksmap/internal/http/middleware"
)

// maxBodyBytes bounds POST /api/lookup bodies
const maxBodyBytes = 1 << 20

// Looker runs breach lookups. *aggregator.Aggregator implements it
type Looker interface {
	Lookup(ctx context.Context, email string) (*aggregator.Result, error)
	LookupUsername(ctx context.Context, username string) (*aggregator.Result, error)
}

type Server struct {
	Router *chi.Mux
	Lookup Looker
	Log    zerolog.Logger
}

type ServerOptions struct {
	Lookup   Looker
	Log      zerolog.Logger
	Gatherer prometheus.Gatherer // served on /metrics when set
	Metrics  *appmw.HTTPMetrics  // optional request instrumentation
}

// New builds the router with health, metrics and lookup routes
func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Log))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(chimw.Recoverer)
	r.Use(opts.Metrics.Handler)

	s := &Server{Router: r, Lookup: opts.Lookup, Log: opts.Log}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/breaches", s.handleBreaches)
		api.Post("/lookup", s.handleLookup)
	})

	return s
}

// accessLog records one line per request. The query string is left out
// because it carries the email or username being looked up
func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

func (s *Server) handleBreaches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.lookup(w, r, q.Get("email"), q.Get("username"))
}

type lookupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	s.lookup(w, r, req.Email, req.Username)
}

type errorResponse struct {
	Error     string   `json:"error"`
	Providers []string `json:"providers,omitempty"`
}

// lookup searches by username when one is given and by email otherwise. An
// empty email is left for the aggregator to reject
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, email, username string) {
	var (
		res *aggregator.Result
		err error
	)
	switch {
	case email != "" && username != "":
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "give either an email or a username, not both"})
		return
	case username != "":
		res, err = s.Lookup.LookupUsername(r.Context(), username)
	default:
		res, err = s.Lookup.Lookup(r.Context(), email)
	}
	if err == nil {
		writeJSON(w, r, http.StatusOK, res)
		return
	}

	var unavailable *breach.AllProvidersUnavailableError
	switch {
	case errors.Is(err, breach.ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &unavailable):
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{
			Error:     breach.ErrAllProvidersUnavailable.Error(),
			Providers: unavailable.Messages(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, r, http.StatusGatewayTimeout, errorResponse{Error: "lookup did not complete"})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("lookup failed")
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}
