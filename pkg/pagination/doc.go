// Package pagination turns a single "get up to N items" query into the
// sequence of marker-paged wire requests needed to satisfy it.
//
// rippled pages list queries with an opaque continuation token, the marker.
// Each page's request depends on the previous page's marker, so pages of one
// aggregation are always fetched sequentially, one request in flight.
//
// Example usage:
//
//	agg := pagination.NewAggregator(dispatcher, logger)
//	pages, err := agg.AggregateAll(ctx, commands.AccountOffers, map[string]any{
//		"account": "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH",
//		"limit":   25,
//	}, pagination.Options{})
//
// The aggregator:
//   - Issues exactly one request when no limit is given
//   - Resolves the response field holding the items (the collect key)
//   - Asks each page for the remaining count only
//   - Stops on a missing marker, a satisfied count, or an empty page
//   - Returns the raw pages in arrival order, or an error and no pages
package pagination
