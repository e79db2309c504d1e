package metrics

import "time"

// Dispatch outcomes used as metric labels.
const (
	OutcomeAssigned     = "assigned"
	OutcomeNoCandidates = "no_candidates"
	OutcomeTooFar       = "too_far"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// Recorder records dispatch and graph engine events for observability.
type Recorder interface {
	RecordDispatch(outcome string, took time.Duration)
	RecordRelaxation(algorithm string, reached int, took time.Duration)
	RecordGraphBuild(nodes, edges int, took time.Duration)
	RecordGraphCache(hit bool)
}

// NopRecorder implements Recorder with no-op methods.
type NopRecorder struct{}

func (NopRecorder) RecordDispatch(string, time.Duration)        {}
func (NopRecorder) RecordRelaxation(string, int, time.Duration) {}
func (NopRecorder) RecordGraphBuild(int, int, time.Duration)    {}
func (NopRecorder) RecordGraphCache(bool)                       {}
