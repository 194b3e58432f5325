// Package runner drives a harvesting run: it walks the identifier groups in
// order, pages through each group with a pagination.Fetcher, feeds decoded
// records into a checkpoint buffer and decides after every page whether to
// continue, retry, flush or stop.
//
// Outcome handling per page:
//
//	ok              append records; follow the cursor or finish the group
//	timed_out       re-issue the same call, without an attempt ceiling
//	failed          abandon the group, nothing is flushed
//	quota_exceeded  flush what is buffered and end the run
//
// After a drained group whose index is a positive multiple of
// Config.FlushInterval the buffer is flushed. Whatever is still buffered when
// Run returns is flushed once more on every exit path, including context
// cancellation and panics, using a context that cannot be cancelled.
package runner
