package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Extraction errors
	ErrNoFormatAvailable = fmt.Errorf("no progressive audio format available")
	ErrExtraction        = fmt.Errorf("extraction failed")
	ErrTimeout           = fmt.Errorf("operation timed out")

	// Streaming errors
	ErrUpstreamStatus = fmt.Errorf("upstream returned error status")
	ErrProcessSpawn   = fmt.Errorf("failed to spawn extraction process")

	// Lookup errors
	ErrTrackNotFound = fmt.Errorf("track not found")
	ErrTaskNotFound  = fmt.Errorf("task not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
