package evaluate

// Status is the derived verdict of an evaluation. It is never stored on the
// run; it is recomputed from it.
type Status string

const (
	StatusError        Status = "ERROR"
	StatusUnknownHeavy Status = "UNKNOWN_HEAVY"
	StatusReady        Status = "READY"
	StatusNotReady     Status = "NOT_READY"
)

// StatusOf classifies the outcome of Evaluate. A failed evaluation is ERROR.
// A run whose UNKNOWN gaps exceed 35% of its gaps is UNKNOWN_HEAVY, ahead
// of the readiness verdict.
func StatusOf(run *Run, err error) Status {
	if err != nil || run == nil {
		return StatusError
	}
	if run.GapSummary.UnknownHeavy() {
		return StatusUnknownHeavy
	}
	if run.Readiness.Ready {
		return StatusReady
	}
	return StatusNotReady
}

// Status returns the derived status of a successful run.
func (r *Run) Status() Status {
	return StatusOf(r, nil)
}
