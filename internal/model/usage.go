package model

import (
	"fmt"
	"strings"
)

// Usage distinguishes committing detection runs from preview runs.
type Usage string

const (
	// Detection runs persist their results.
	Detection Usage = "DETECTION"
	// Evaluation runs are previews with no side effects.
	Evaluation Usage = "EVALUATION"
)

// ParseUsage converts a user supplied value into a Usage. An empty value
// defaults to Detection.
func ParseUsage(value string) (Usage, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", string(Detection):
		return Detection, nil
	case string(Evaluation):
		return Evaluation, nil
	default:
		return "", fmt.Errorf("unsupported usage %q", value)
	}
}

// Valid reports whether the usage is one the engine knows how to handle.
func (u Usage) Valid() bool {
	return u == Detection || u == Evaluation
}

func (u Usage) String() string {
	return string(u)
}
