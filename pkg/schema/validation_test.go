package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
}

func TestValidationResult_AddNodeError(t *testing.T) {
	r := &ValidationResult{}
	r.AddNodeError("if_1", IssueBranchTrueMissing, "if_else has no true branch")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "nodes[if_1]", r.Errors[0].Path)
	assert.Equal(t, "if_1", r.Errors[0].NodeID)
	assert.Equal(t, IssueBranchTrueMissing, r.Errors[0].Code)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
	assert.True(t, r.HasCode(IssueBranchTrueMissing))
}

func TestValidationResult_WarningsKeepValid(t *testing.T) {
	r := &ValidationResult{}
	r.AddNodeWarning("if_1", IssueBranchFalseMissing, "if_else has no false branch")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
	assert.True(t, r.HasCode(IssueBranchFalseMissing))
	assert.False(t, r.HasCode(IssueCycle))
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", IssueTriggerCount, "err1")
	r1.AddWarning("/", IssueNodeIsolated, "warn1")

	r2 := &ValidationResult{}
	r2.AddError(EdgePath(0), IssueDanglingEdge, "err2")
	r2.Merge(nil)

	r1.Merge(r2)

	assert.Len(t, r1.Errors, 2)
	assert.Len(t, r1.Warnings, 1)
	assert.Equal(t, "edges[0]", r1.Errors[1].Path)
}

func TestValidationResult_ToError(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := &ValidationResult{}
		r.AddWarning("/", IssueNodeIsolated, "just a warning")
		assert.Nil(t, r.ToError())
	})

	t.Run("single error", func(t *testing.T) {
		r := &ValidationResult{}
		r.AddError("/", IssueTerminalMissing, "graph has no terminal node")

		var fe *FlowError
		require.ErrorAs(t, r.ToError(), &fe)
		assert.Equal(t, ErrCodeValidation, fe.Code)
		assert.Equal(t, "graph has no terminal node", fe.Message)
		assert.Equal(t, 1, fe.Details["error_count"])
	})

	t.Run("multiple errors", func(t *testing.T) {
		r := &ValidationResult{}
		r.AddError("/", IssueTriggerCount, "err1")
		r.AddError("/", IssueTerminalMissing, "err2")
		r.AddWarning("/", IssueNodeIsolated, "warn1")

		var fe *FlowError
		require.ErrorAs(t, r.ToError(), &fe)
		assert.Contains(t, fe.Message, "2 errors")
		assert.Equal(t, 1, fe.Details["warning_count"])
	})
}

func TestFlowError_Format(t *testing.T) {
	err := NewErrorf(ErrCodeConfiguration, "credential %q not configured", "api").WithNode("http_1")
	assert.Equal(t, `[CONFIGURATION_ERROR] node http_1: credential "api" not configured`, err.Error())

	plain := NewError(ErrCodeCycleDetected, "cycle")
	assert.Equal(t, "[CYCLE_DETECTED] cycle", plain.Error())
}

func TestFlowError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrCodeExecution, "request failed").WithCause(cause)
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, ErrCodeExecution, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(cause))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("boom")))
	assert.True(t, IsRetryable(NewError(ErrCodeExecution, "x")))
	assert.True(t, IsRetryable(NewError(ErrCodeTimeout, "x")))
	assert.False(t, IsRetryable(NewError(ErrCodeConfiguration, "x")))
	assert.False(t, IsRetryable(NewError(ErrCodeStructural, "x")))
}
