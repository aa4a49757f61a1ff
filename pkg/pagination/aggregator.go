package pagination

import (
	"context"
	"time"

	"github.com/Sternrassler/xrpl-client/internal/numeric"
	"github.com/Sternrassler/xrpl-client/pkg/apierrors"
	"github.com/Sternrassler/xrpl-client/pkg/commands"
	"github.com/Sternrassler/xrpl-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for aggregations.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrpl_pagination_pages_total",
		Help: "Total pages fetched by aggregations by command",
	}, []string{"command"})

	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrpl_pagination_aggregations_total",
		Help: "Total aggregations by command and outcome",
	}, []string{"command", "outcome"})
)

// Dispatcher performs one guarded round-trip.
type Dispatcher interface {
	Request(ctx context.Context, command commands.Command, params map[string]any, timeout time.Duration) (transport.Response, error)
}

// Options tunes a single aggregation.
type Options struct {
	// CollectKey overrides the command's collect key. Required for
	// commands missing from the command table.
	CollectKey string

	// Timeout bounds each page's round-trip. The whole aggregation is
	// bounded by the caller's context only.
	Timeout time.Duration
}

// Aggregator issues the paged requests of list queries.
type Aggregator struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewAggregator creates an aggregator dispatching through d.
func NewAggregator(d Dispatcher, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		dispatcher: d,
		logger:     logger,
	}
}

// AggregateAll fetches up to params["limit"] items of command, following
// markers, and returns the raw pages in the order received.
//
// Without a limit a single request is made and its response returned as the
// only page. A marker present in params is the starting continuation point.
// Any dispatch failure aborts the aggregation and no pages are returned.
func (a *Aggregator) AggregateAll(ctx context.Context, command commands.Command, params map[string]any, opts Options) ([]transport.Response, error) {
	rawLimit, hasLimit := params["limit"]
	if !hasLimit || rawLimit == nil {
		resp, err := a.dispatcher.Request(ctx, command, params, opts.Timeout)
		if err != nil {
			aggregationsTotal.WithLabelValues(string(command), "error").Inc()
			return nil, err
		}
		pagesTotal.WithLabelValues(string(command)).Inc()
		aggregationsTotal.WithLabelValues(string(command), "single").Inc()
		return []transport.Response{resp}, nil
	}

	collectKey := opts.CollectKey
	if collectKey == "" {
		key, ok := commands.CollectKey(command)
		if !ok {
			aggregationsTotal.WithLabelValues(string(command), "invalid").Inc()
			return nil, apierrors.Validationf("no collect key for command %s", command)
		}
		collectKey = key
	}

	countTo, ok := numeric.NonNegativeInt(rawLimit)
	if !ok {
		aggregationsTotal.WithLabelValues(string(command), "invalid").Inc()
		return nil, apierrors.Validationf("limit must be a non-negative integer, got %v", rawLimit)
	}

	start := time.Now()
	var (
		pages  []transport.Response
		count  int64
		marker = params["marker"]
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			aggregationsTotal.WithLabelValues(string(command), "cancelled").Inc()
			return nil, err
		}

		countRemaining := countTo - count
		req := make(map[string]any, len(params)+2)
		for k, v := range params {
			req[k] = v
		}
		req["limit"] = countRemaining
		if hasMarker(marker) {
			req["marker"] = marker
		} else {
			delete(req, "marker")
		}

		resp, err := a.dispatcher.Request(ctx, command, req, opts.Timeout)
		if err != nil {
			a.logger.Debug().
				Err(err).
				Str("command", string(command)).
				Int("page", page).
				Msg("Aggregation aborted")
			aggregationsTotal.WithLabelValues(string(command), "error").Inc()
			return nil, err
		}

		marker = resp["marker"]

		batch, err := batchLength(resp, collectKey)
		if err != nil {
			aggregationsTotal.WithLabelValues(string(command), "error").Inc()
			return nil, err
		}
		count += int64(batch)
		pages = append(pages, resp)
		pagesTotal.WithLabelValues(string(command)).Inc()

		a.logger.Debug().
			Str("command", string(command)).
			Int("page", page).
			Int("batch", batch).
			Int64("count", count).
			Int64("count_to", countTo).
			Bool("marker_present", hasMarker(marker)).
			Msg("Page fetched")

		if !hasMarker(marker) || count >= countTo || batch == 0 {
			break
		}
	}

	a.logger.Debug().
		Str("command", string(command)).
		Int("pages", len(pages)).
		Int64("count", count).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")
	aggregationsTotal.WithLabelValues(string(command), "complete").Inc()

	return pages, nil
}

// hasMarker reports whether m continues a listing. rippled never sends an
// empty marker, so "" is treated as absent.
func hasMarker(m any) bool {
	if m == nil {
		return false
	}
	s, ok := m.(string)
	return !ok || s != ""
}

// batchLength returns the number of items under key. A missing field is an
// empty batch.
func batchLength(resp transport.Response, key string) (int, error) {
	raw, ok := resp[key]
	if !ok || raw == nil {
		return 0, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return 0, &transport.Error{
			Kind:    transport.KindProtocol,
			Message: "response field " + key + " is not a list",
		}
	}
	return len(items), nil
}
