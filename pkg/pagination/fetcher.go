package pagination

import (
	"context"
	"time"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for page fetches.
var (
	fetchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_fetch_outcomes_total",
		Help: "Total page fetches by outcome kind",
	}, []string{"kind"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_fetch_duration_seconds",
		Help:    "Duration of a single page fetch including decoding",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// PageLister is the capability the catalog API client must provide.
type PageLister interface {
	// ListCatalogItems returns one raw page for ids. An empty pageToken
	// requests the first page.
	ListCatalogItems(ctx context.Context, ids []catalog.Identifier, pageToken string) (*catalog.RawPage, error)
}

// Fetcher issues one classified page request per call.
type Fetcher struct {
	lister PageLister
	logger zerolog.Logger
}

// NewFetcher creates a new Fetcher around lister.
func NewFetcher(lister PageLister, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		lister: lister,
		logger: logger,
	}
}

// FetchPage requests the page at cursor for group and decodes it. It never
// returns an error directly; failures are reported through Outcome.Kind.
func (f *Fetcher) FetchPage(ctx context.Context, group catalog.Group, cursor string) Outcome {
	start := time.Now()
	outcome := f.fetch(ctx, group, cursor)
	fetchDuration.Observe(time.Since(start).Seconds())
	fetchOutcomesTotal.WithLabelValues(string(outcome.Kind)).Inc()

	if outcome.Kind == OutcomeOK {
		f.logger.Debug().
			Int("group_index", group.Index).
			Str("page_token", cursor).
			Int("records", len(outcome.Records)).
			Int("skipped", outcome.Skipped).
			Bool("has_next", outcome.HasNext()).
			Msg("Page fetched")
		return outcome
	}

	level := zerolog.WarnLevel
	if outcome.Kind == OutcomeQuotaExceeded {
		level = zerolog.ErrorLevel
	}
	f.logger.WithLevel(level).
		Err(outcome.Err).
		Int("group_index", group.Index).
		Int("group_size", group.Len()).
		Str("page_token", cursor).
		Str("outcome", string(outcome.Kind)).
		Msg("Page fetch failed")

	return outcome
}

func (f *Fetcher) fetch(ctx context.Context, group catalog.Group, cursor string) Outcome {
	page, err := f.lister.ListCatalogItems(ctx, group.IDs, cursor)
	if err != nil {
		return Outcome{Kind: Classify(err), Err: err}
	}
	if page == nil {
		return Outcome{Kind: OutcomeFailed, Err: errEmptyResponse}
	}

	records, skipped := catalog.DecodeItems(page.Items, f.logger)
	return Outcome{
		Kind:       OutcomeOK,
		Records:    records,
		NextCursor: page.NextPageToken,
		Skipped:    skipped,
	}
}
