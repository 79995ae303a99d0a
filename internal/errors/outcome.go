package errors

import "fmt"

// Outcome records the result of one sub-step of a multi-step operation,
// carrying an explicit severity so callers can tell fatal failures apart
// from warn-and-continue ones. Best-effort steps (bootstrap file copies,
// post-create hooks) report warning outcomes instead of returning errors
// that would abort the whole operation.
type Outcome struct {
	// Step names the sub-step, e.g. "copy .env" or "post_create[0]".
	Step string
	// Severity classifies the failure. SeverityInfo for successful steps.
	Severity Severity
	// Err is the underlying failure, nil on success.
	Err error
}

// OKStep returns a successful outcome for the named step.
func OKStep(step string) Outcome {
	return Outcome{Step: step, Severity: SeverityInfo}
}

// WarnStep returns a warning outcome. The operation continues.
func WarnStep(step string, err error) Outcome {
	return Outcome{Step: step, Severity: SeverityWarning, Err: err}
}

// FatalStep returns a fatal outcome. The operation should stop.
func FatalStep(step string, err error) Outcome {
	return Outcome{Step: step, Severity: SeverityError, Err: err}
}

// Failed reports whether the step failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Fatal reports whether the failure should abort the enclosing operation.
func (o Outcome) Fatal() bool {
	return o.Err != nil && o.Severity >= SeverityError
}

// String renders the outcome for logs and CLI summaries.
func (o Outcome) String() string {
	if o.Err == nil {
		return fmt.Sprintf("%s: ok", o.Step)
	}
	return fmt.Sprintf("%s: %s: %v", o.Step, o.Severity, o.Err)
}

// FirstFatal returns the first fatal outcome in the slice, or nil.
func FirstFatal(outcomes []Outcome) *Outcome {
	for i := range outcomes {
		if outcomes[i].Fatal() {
			return &outcomes[i]
		}
	}
	return nil
}

// Warnings returns the non-fatal failed outcomes in the slice.
func Warnings(outcomes []Outcome) []Outcome {
	var warns []Outcome
	for _, o := range outcomes {
		if o.Failed() && !o.Fatal() {
			warns = append(warns, o)
		}
	}
	return warns
}
