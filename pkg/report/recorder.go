package report

import "time"

// Recorder receives counters about a validation run. Implementations must
// be safe for concurrent use.
type Recorder interface {
	// DocumentValidated counts a document that passed its own checks.
	DocumentValidated(shape string)
	// Violation counts a reported violation by taxonomy kind.
	Violation(kind string)
	// ContractCheck records one remote definition lookup.
	ContractCheck(status string, duration time.Duration)
}

// NopRecorder drops everything.
type NopRecorder struct{}

func (NopRecorder) DocumentValidated(string) {}

func (NopRecorder) Violation(string) {}

func (NopRecorder) ContractCheck(string, time.Duration) {}
