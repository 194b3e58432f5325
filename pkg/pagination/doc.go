// Package pagination follows the continuation cursors of the catalog API for
// one group of identifiers and classifies every call into an Outcome.
//
// The remote API signals more data with a nextPageToken. A Fetcher issues
// exactly one call per FetchPage; following the cursor, retrying timeouts and
// stopping on quota exhaustion is left to the caller:
//
//	fetcher := pagination.NewFetcher(apiClient, logger)
//	cursor := ""
//	for {
//		outcome := fetcher.FetchPage(ctx, group, cursor)
//		if outcome.Kind != pagination.OutcomeOK {
//			break
//		}
//		consume(outcome.Records)
//		if outcome.NextCursor == "" {
//			break
//		}
//		cursor = outcome.NextCursor
//	}
//
// Classification prefers the structured class carried by *client.APIError and
// falls back to matching "quotaExceeded" and "timed out" in the error text.
package pagination
