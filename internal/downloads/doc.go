// Package downloads runs background audio downloads with bounded
// concurrency.
//
// Each accepted job gets a generated task id that callers poll for status.
// A semaphore caps how many subprocesses run at once and a rate limiter
// spaces out launches so a burst of requests does not hammer the remote
// platform. Finished files are registered in the local library when a
// repository is attached.
package downloads
