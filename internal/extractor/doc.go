// Package extractor wraps the yt-dlp subprocess that resolves signed media URLs.
//
// # Handles
//
// A [Client] is one extraction handle: it owns a private cache directory where
// yt-dlp keeps its player/signature state between calls. That state is
// call-order sensitive, so a handle must never run two extractions at once.
// The stream engine enforces this with a capacity-1 gate per handle and keeps
// two independent handles (background and urgent) so prefetch work can never
// delay a user-initiated play.
//
// # Info decoding
//
// yt-dlp's info dict is decoded into the narrow [TrackInfo] and [Format]
// structs; only the fields format selection and artifact construction need
// are kept, and the raw JSON never leaves this package.
//
// # Format selection
//
// [SelectProgressiveAudio] deterministically picks a variant safe for plain
// byte-range HTTP. Segmented (m3u8) and non-https protocols are hard-rejected;
// among the survivors a fixed itag preference list decides, falling back to
// the first audio-only candidate and then to any candidate with an audio
// track. It returns nil rather than ever handing back a manifest URL.
//
// # Cookies
//
// [CookieJar] performs the one-time cookie bootstrap: manual cookie files are
// honored first, otherwise cookies are exported from a local browser into a
// cached Netscape file with a 4 hour TTL.
package extractor
