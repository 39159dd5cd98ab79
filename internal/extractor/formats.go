package extractor

// progressiveItags are browser-safe progressive format IDs in preference
// order. These variants are always served over plain https, never as an HLS
// manifest.
var progressiveItags = []string{"140", "251", "250", "249", "139"}

// itagMIMETypes maps known progressive itags to the MIME type browsers expect.
var itagMIMETypes = map[string]string{
	"140": "audio/mp4",  // m4a AAC 128kbps
	"139": "audio/mp4",  // m4a AAC 48kbps
	"251": "audio/webm", // webm Opus 128kbps
	"250": "audio/webm", // webm Opus 64kbps
	"249": "audio/webm", // webm Opus 48kbps
}

// eligible reports whether a format is usable for byte-range proxying:
// plain https transport, an audio codec, and a concrete URL.
func eligible(f Format) bool {
	if f.Protocol != "https" {
		return false
	}
	if f.ACodec == "" || f.ACodec == "none" {
		return false
	}
	return f.URL != ""
}

// SelectProgressiveAudio deterministically picks a progressive audio variant.
//
// Segmented protocols (m3u8) and anything not served over https are rejected
// outright; a manifest URL must never reach the proxy. Among eligible
// candidates the itag preference list decides first, then the first
// audio-only candidate, then any remaining candidate with an audio track.
// Returns nil when no eligible candidate exists.
func SelectProgressiveAudio(info *TrackInfo) *Format {
	if info == nil || len(info.Formats) == 0 {
		return nil
	}

	candidates := make(map[string]*Format, len(info.Formats))
	var order []string
	for i := range info.Formats {
		f := &info.Formats[i]
		if !eligible(*f) {
			continue
		}
		if _, seen := candidates[f.FormatID]; !seen {
			order = append(order, f.FormatID)
		}
		candidates[f.FormatID] = f
	}
	if len(candidates) == 0 {
		return nil
	}

	for _, itag := range progressiveItags {
		if f, ok := candidates[itag]; ok {
			return f
		}
	}

	// Fallback: first audio-only candidate in input order.
	for _, id := range order {
		f := candidates[id]
		if f.VCodec == "" || f.VCodec == "none" {
			return f
		}
	}

	// Last resort: anything eligible still carries an audio track.
	return candidates[order[0]]
}

// MIMEType returns the content type to declare for a selected format.
//
// Known itags take precedence over the container extension because the CDN
// does not always label responses correctly.
func MIMEType(f *Format) string {
	if mime, ok := itagMIMETypes[f.FormatID]; ok {
		return mime
	}
	if f.Ext == "m4a" || f.Ext == "mp4" {
		return "audio/mp4"
	}
	return "audio/webm"
}
