package converter

import "fmt"

// Stage is a step of a single conversion. A conversion only moves forward
// and ends in StageDone or StageFailed.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageInputAcquired      Stage = "input_acquired"
	StageStylesInjected     Stage = "styles_injected"
	StageLetterheadPrepared Stage = "letterhead_prepared"
	StageRendered           Stage = "rendered"
	StagePersisted          Stage = "persisted"
	StageCountObtained      Stage = "count_obtained"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// StageError records the last stage reached before a conversion failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("conversion failed after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
