// Package stream implements the extraction engine: the authorization cache,
// the background priority scheduler, and the urgent bypass path.
//
// # Engine
//
// [Engine] owns two isolated extraction handles. The background handle serves
// a priority queue drained by a single worker goroutine; the urgent handle
// serves priority-1 requests directly, so a slow prefetch batch can never
// delay a user pressing play. Each handle is guarded by a capacity-1 gate:
// the underlying extractor keeps call-order-sensitive signature state and
// must never run two extractions at once.
//
// # Deduplication
//
// At most one extraction is in flight per track in the background path.
// Callers for a track that is already pending join the existing result slot
// and all observe the identical artifact or error.
//
// # Caching
//
// Resolved artifacts carry a fixed expiry horizon and are cached in a
// bounded LRU. Validity is pessimistic: an artifact within 90 seconds of its
// expiry is treated as absent so a stream never starts on a URL that dies
// mid-transfer.
//
// # Cancellation
//
// A caller timeout abandons only the waiting caller. Extraction, once
// started, runs to completion and populates the cache for future requests.
package stream
