// Package ui implements a terminal dashboard for a running stream engine
// using bubbletea's Elm architecture.
//
// The dashboard polls the engine's stats endpoint on a fixed interval and
// renders cache occupancy, queue depth, pending extractions and warm-up
// state. Keyboard bindings follow vim conventions (r to refresh now, q to
// quit) with contextual help via charmbracelet/bubbles/help.
package ui
