package agent

import "fmt"

// Action selects which task the pipeline runs.
type Action string

const (
	ActionStartInterview    Action = "start_interview"
	ActionContinueInterview Action = "continue_interview"
	ActionPerformAnalysis   Action = "perform_analysis"
)

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

func (a Action) Valid() bool {
	switch a {
	case ActionStartInterview, ActionContinueInterview, ActionPerformAnalysis:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }
