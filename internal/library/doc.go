// Package library persists metadata for tracks downloaded to local storage
// and resolves their on-disk files for playback.
//
// Tracks live in a sqlite table keyed by an integer row id. A track that is
// missing from the table can still be played when its audio file exists in
// the downloads directory under a recognizable name.
package library
