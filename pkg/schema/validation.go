package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// Validation issue codes.
const (
	IssueDuplicateNodeID     = "DUPLICATE_NODE_ID"
	IssueMalformedNode       = "MALFORMED_NODE"
	IssueDanglingEdge        = "DANGLING_EDGE"
	IssueTriggerCount        = "TRIGGER_COUNT"
	IssueTriggerHasIncoming  = "TRIGGER_HAS_INCOMING"
	IssueTerminalMissing     = "TERMINAL_MISSING"
	IssueNodeIsolated        = "NODE_ISOLATED"
	IssueBranchTrueMissing   = "BRANCH_TRUE_MISSING"
	IssueBranchFalseMissing  = "BRANCH_FALSE_MISSING"
	IssueBranchHandleDup     = "BRANCH_HANDLE_DUPLICATE"
	IssueBranchHandleInvalid = "BRANCH_HANDLE_INVALID"
	IssueBranchTargetsShared = "BRANCH_TARGETS_SHARED"
	IssueSwitchHandleUnknown = "SWITCH_HANDLE_UNKNOWN"
	IssueCycle               = "CYCLE_DETECTED"
	IssueUnknownNodeType     = "UNKNOWN_NODE_TYPE"
	IssueCategoryMismatch    = "CATEGORY_MISMATCH"
	IssueRequiredConfig      = "REQUIRED_CONFIG_MISSING"
	IssueConfigSchema        = "CONFIG_SCHEMA"
	IssueDocumentSchema      = "DOCUMENT_SCHEMA"
)

// ValidationIssue is a single validation problem with location context.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
	NodeID   string             `json:"node_id,omitempty"`
}

// ValidationResult aggregates all issues from the validation pipeline.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// AddNodeError appends an error attributed to a node.
func (r *ValidationResult) AddNodeError(nodeID, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: NodePath(nodeID), Code: code, Message: message, Severity: SeverityError, NodeID: nodeID,
	})
}

// AddNodeWarning appends a warning attributed to a node.
func (r *ValidationResult) AddNodeWarning(nodeID, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: NodePath(nodeID), Code: code, Message: message, Severity: SeverityWarning, NodeID: nodeID,
	})
}

// HasCode reports whether any error or warning carries code.
func (r *ValidationResult) HasCode(code string) bool {
	for _, is := range r.Errors {
		if is.Code == code {
			return true
		}
	}
	for _, is := range r.Warnings {
		if is.Code == code {
			return true
		}
	}
	return false
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError converts the result to a FlowError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}

// NodePath renders the issue path for a node.
func NodePath(nodeID string) string {
	return fmt.Sprintf("nodes[%s]", nodeID)
}

// EdgePath renders the issue path for an edge.
func EdgePath(index int) string {
	return fmt.Sprintf("edges[%d]", index)
}
