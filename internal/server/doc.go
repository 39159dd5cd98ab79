// Package server provides HTTP routing, middleware, and the streaming handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes and encapsulate route definitions within the implementation.
//
// # Handlers
//
// [StreamHandler] serves the extraction-and-proxy surface: /stream/{trackId}
// proxies signed-URL audio with byte-range passthrough, falling back to a
// subprocess pipe stream when no progressive format exists;
// /stream/{trackId}/prefetch enqueues speculative extraction;
// /stream/stats exposes engine counters.
//
// [LibraryHandler] streams locally stored tracks by numeric id.
// [DownloadsHandler] fronts the bulk download job manager.
// [HealthHandler] reports liveness and warm-up state.
//
// # Error Responses
//
// Failures are returned as JSON bodies {error, detail, retryable} so clients
// can distinguish "try again" (timeout) from "this track cannot be streamed"
// (exhausted strategies).
package server
