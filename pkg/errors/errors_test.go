package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("pipeline.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "pipeline.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "pipeline.yaml:12")
}

func TestValidationErrorCarriesField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("nodes[1].inputs", "references unknown node", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "nodes[1].inputs", validationErr.Field)
	require.Contains(t, validationErr.Message, "references unknown node")
	require.Equal(t, "validation error: nodes[1].inputs: references unknown node", err.Error())
}

func TestExecutionErrorIncludesNodeContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("query failed")
	err := NewExecutionError("fetch_data", underlying)

	var executionErr *ExecutionError
	require.ErrorAs(t, err, &executionErr)
	require.Equal(t, "fetch_data", executionErr.NodeName)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestOperatorErrorIncludesType(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("no operator registered")
	err := NewOperatorError("Unknown", underlying)

	var operatorErr *OperatorError
	require.ErrorAs(t, err, &operatorErr)
	require.Equal(t, "Unknown", operatorErr.Type)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "[Unknown]")
}

func TestDetectorErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewDetectorError("THRESHOLD", "anomaly starts before interval")
	require.Equal(t, "detector error [THRESHOLD]: anomaly starts before interval", err.Error())
}

func TestBranchErrorUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("boom")
	err := NewBranchError(2, "country=fr", underlying)

	var branchErr *BranchError
	require.ErrorAs(t, err, &branchErr)
	require.Equal(t, 2, branchErr.Index)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "country=fr")
}

func TestNilErrorsRenderEmpty(t *testing.T) {
	t.Parallel()

	var parseErr *ParseError
	var validationErr *ValidationError
	var executionErr *ExecutionError
	var operatorErr *OperatorError
	var branchErr *BranchError

	require.Empty(t, parseErr.Error())
	require.Empty(t, validationErr.Error())
	require.Empty(t, executionErr.Error())
	require.Empty(t, operatorErr.Error())
	require.Empty(t, branchErr.Error())
	require.Nil(t, executionErr.Unwrap())
}
