// Package aggregator fans a breach lookup out to every configured provider,
// caches their normalized answers and merges them into one result
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/briangreenhill/leaksmap/breach"
	"github.com/briangreenhill/leaksmap/cache"
	"github.com/briangreenhill/leaksmap/internal/providers"
)

const (
	DefaultLookupTimeout = 30 * time.Second
	DefaultCacheTTL      = cache.DefaultTTL
)

// Store is the cache the aggregator reads and fills. *cache.Memory of
// []breach.Record satisfies it
type Store interface {
	cache.ReadWriter[[]breach.Record]
	cache.KeyGenerator
}

// Warning reports a provider that failed while others answered
type Warning struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// Result is the merged answer to one lookup. Exactly one of Email and
// Username is set
type Result struct {
	ID       string          `json:"id"`
	Email    string          `json:"email,omitempty"`
	Username string          `json:"username,omitempty"`
	Breaches []breach.Record `json:"breaches"`
	Warnings []Warning       `json:"warnings"`
}

type Aggregator struct {
	providers []providers.Provider
	store     Store
	ttl       time.Duration
	timeout   time.Duration
	log       zerolog.Logger
	metrics   *Metrics

	inflight singleflight.Group
}

type Option func(*Aggregator)

// WithCacheTTL sets how long provider answers stay cached
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithLookupTimeout bounds a whole lookup. Providers that have not answered
// by then are reported as failed
func WithLookupTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger lookups report to
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithMetrics records cache, provider and lookup counters on m. A nil m
// disables them
func WithMetrics(m *Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New creates an Aggregator over provs, queried in the given order. The
// order decides which record survives de-duplication
func New(store Store, provs []providers.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers: append([]providers.Provider(nil), provs...),
		store:     store,
		ttl:       DefaultCacheTTL,
		timeout:   DefaultLookupTimeout,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Providers returns the names of the providers queried, in order
func (a *Aggregator) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		names = append(names, p.Name())
	}
	return names
}

type outcome struct {
	records []breach.Record
	err     *breach.ProviderError
}

// search is one provider's share of a lookup, bound to the queried value
type search struct {
	provider string
	key      func() (string, map[string]string)
	run      func(ctx context.Context) ([]breach.Record, error)
}

// Lookup validates email, queries every provider concurrently and returns
// the de-duplicated breaches. It fails with *breach.InvalidInputError before
// any network access, with *breach.AllProvidersUnavailableError when no
// provider answered, or with ctx's error when the caller gave up. When ctx's
// deadline passes after some providers answered, their breaches come back
// with the rest reported as warnings
func (a *Aggregator) Lookup(ctx context.Context, email string) (*Result, error) {
	addr, err := breach.ValidateEmail(email)
	if err != nil {
		a.metrics.lookup(OutcomeInvalid)
		return nil, err
	}

	searches := make([]search, 0, len(a.providers))
	for _, p := range a.providers {
		searches = append(searches, search{
			provider: p.Name(),
			key:      func() (string, map[string]string) { return p.CacheKey(addr) },
			run:      func(ctx context.Context) ([]breach.Record, error) { return p.Search(ctx, addr) },
		})
	}

	log := a.log.With().Str("email", breach.MaskEmail(addr)).Logger()
	res, err := a.lookup(ctx, log, searches)
	if err != nil {
		return nil, err
	}
	res.Email = addr
	return res, nil
}

// LookupUsername is Lookup for a username. Only providers implementing
// providers.UsernameSearcher are queried; with none configured it fails with
// *breach.AllProvidersUnavailableError
func (a *Aggregator) LookupUsername(ctx context.Context, username string) (*Result, error) {
	name, err := breach.ValidateUsername(username)
	if err != nil {
		a.metrics.lookup(OutcomeInvalid)
		return nil, err
	}

	var searches []search
	for _, p := range a.providers {
		us, ok := p.(providers.UsernameSearcher)
		if !ok {
			continue
		}
		searches = append(searches, search{
			provider: p.Name(),
			key:      func() (string, map[string]string) { return us.UsernameCacheKey(name) },
			run:      func(ctx context.Context) ([]breach.Record, error) { return us.SearchUsername(ctx, name) },
		})
	}

	log := a.log.With().Str("username", breach.MaskUsername(name)).Logger()
	res, err := a.lookup(ctx, log, searches)
	if err != nil {
		return nil, err
	}
	res.Username = name
	return res, nil
}

func (a *Aggregator) lookup(ctx context.Context, log zerolog.Logger, searches []search) (*Result, error) {
	id := uuid.NewString()
	log = log.With().Str("lookup_id", id).Logger()
	start := time.Now()

	lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// results are indexed by provider so declaration order survives the fan-out
	outcomes := make([]outcome, len(searches))
	var g errgroup.Group
	for i, s := range searches {
		g.Go(func() error {
			outcomes[i] = a.query(lookupCtx, log, s)
			return nil
		})
	}
	_ = g.Wait()

	lists := make([][]breach.Record, 0, len(outcomes))
	warnings := []Warning{}
	var failures []*breach.ProviderError
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, o.err)
			warnings = append(warnings, Warning{Provider: searches[i].provider, Message: o.err.Error()})
			continue
		}
		lists = append(lists, o.records)
	}

	// a caller deadline keeps whatever answered in time; a cancel does not
	if err := ctx.Err(); err != nil && (len(lists) == 0 || !errors.Is(err, context.DeadlineExceeded)) {
		a.metrics.lookup(OutcomeCanceled)
		log.Warn().Err(err).Msg("lookup abandoned by caller")
		return nil, err
	}

	if len(lists) == 0 {
		a.metrics.lookup(OutcomeUnavailable)
		unavailable := &breach.AllProvidersUnavailableError{Errors: failures}
		log.Error().Strs("errors", unavailable.Messages()).Msg("all providers unavailable")
		return nil, unavailable
	}

	records := breach.Merge(lists...)
	if len(warnings) > 0 {
		a.metrics.lookup(OutcomePartial)
	} else {
		a.metrics.lookup(OutcomeOK)
	}
	log.Info().
		Int("breaches", len(records)).
		Int("warnings", len(warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("lookup complete")

	return &Result{ID: id, Breaches: records, Warnings: warnings}, nil
}

// query answers one provider's share of a lookup from the cache or, on a
// miss, from a fetch shared with any concurrent lookup for the same key
func (a *Aggregator) query(ctx context.Context, log zerolog.Logger, s search) outcome {
	resource, params := s.key()

	if records, ok := a.store.Get(resource, params); ok {
		a.metrics.cacheResult(s.provider, true)
		log.Debug().Str("provider", s.provider).Int("breaches", len(records)).Msg("cache hit")
		return outcome{records: records}
	}
	a.metrics.cacheResult(s.provider, false)

	ch := a.inflight.DoChan(a.store.KeyFor(resource, params), func() (any, error) {
		return a.fetch(ctx, log, s, resource, params)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return outcome{err: asProviderError(s.provider, res.Err)}
		}
		return outcome{records: res.Val.([]breach.Record)}
	case <-ctx.Done():
		return outcome{err: &breach.ProviderError{
			Provider: s.provider,
			Err:      fmt.Errorf("no answer before the lookup deadline: %w", ctx.Err()),
		}}
	}
}

// fetch calls the provider and caches a successful answer. It is detached
// from the cancellation of the lookup that started it so other lookups
// waiting on the same key still get the answer; a.timeout bounds it instead
func (a *Aggregator) fetch(ctx context.Context, log zerolog.Logger, s search, resource string, params map[string]string) ([]breach.Record, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	start := time.Now()
	records, err := s.run(ctx)
	elapsed := time.Since(start)
	a.metrics.providerRequest(s.provider, err, elapsed)

	if err != nil {
		log.Warn().Str("provider", s.provider).Err(err).Dur("elapsed", elapsed).Msg("provider failed")
		return nil, err
	}
	if records == nil {
		records = []breach.Record{}
	}

	a.store.SetWithTTL(resource, params, records, a.ttl)
	log.Debug().Str("provider", s.provider).Int("breaches", len(records)).Dur("elapsed", elapsed).Msg("provider answered")
	return records, nil
}

func asProviderError(provider string, err error) *breach.ProviderError {
	var pe *breach.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &breach.ProviderError{Provider: provider, Err: err}
}
