package a2ui

import (
	"fmt"
	"strings"
)

// Severity indicates how serious a diagnostic is.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Stable diagnostic codes.
const (
	CodeHeuristicButtonText = "HEURISTIC_BUTTON_TEXT"
	CodeNodeDropped         = "NORMALIZE_NODE_DROPPED"
	CodeButtonIntentUnknown = "DS_BUTTON_INTENT_UNKNOWN"
	CodeColorApprox         = "DS_COLOR_APPROX"
	CodeGapApprox           = "DS_GAP_APPROX"
	CodeUnsupportedNode     = "UNSUPPORTED_NODE"
)

// Suggestion is a machine-readable follow-up for a diagnostic.
type Suggestion struct {
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// Diagnostic records one decision made while transpiling.
type Diagnostic struct {
	Severity   Severity    `json:"severity"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	NodeID     string      `json:"nodeId,omitempty"`
	Ref        *Ref        `json:"ref,omitempty"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Format returns a single-line representation without ANSI colour.
func (d Diagnostic) Format() string {
	var b strings.Builder
	if d.Ref != nil && len(d.Ref.NamePath) > 0 {
		b.WriteString(strings.Join(d.Ref.NamePath, "/"))
		b.WriteString(": ")
	} else if d.NodeID != "" {
		b.WriteString(d.NodeID)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	if d.Code != "" {
		b.WriteString(" [")
		b.WriteString(d.Code)
		b.WriteString("]")
	}
	return b.String()
}

// Diagnostics is an append-only list kept in emission order.
type Diagnostics []Diagnostic

// Add appends d.
func (ds *Diagnostics) Add(d Diagnostic) {
	*ds = append(*ds, d)
}

// Info appends an info diagnostic for node n.
func (ds *Diagnostics) Info(n *Node, code, message string, s *Suggestion) {
	ds.Add(newDiagnostic(SeverityInfo, n, code, message, s))
}

// Warn appends a warn diagnostic for node n.
func (ds *Diagnostics) Warn(n *Node, code, message string, s *Suggestion) {
	ds.Add(newDiagnostic(SeverityWarn, n, code, message, s))
}

// Report appends a diagnostic for node n with the given severity.
func (ds *Diagnostics) Report(sev Severity, n *Node, code, message string, s *Suggestion) {
	ds.Add(newDiagnostic(sev, n, code, message, s))
}

func newDiagnostic(sev Severity, n *Node, code, message string, s *Suggestion) Diagnostic {
	d := Diagnostic{Severity: sev, Code: code, Message: message, Suggestion: s}
	if n != nil {
		d.NodeID = n.ID
		d.Ref = n.Ref
	}
	return d
}

// HasErrors reports whether any entry has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error entries.
func (ds Diagnostics) Errors() Diagnostics {
	return ds.filter(SeverityError)
}

// Warnings returns only the warn entries.
func (ds Diagnostics) Warnings() Diagnostics {
	return ds.filter(SeverityWarn)
}

func (ds Diagnostics) filter(sev Severity) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of entries per severity.
func (ds Diagnostics) Count() map[Severity]int {
	out := map[Severity]int{}
	for _, d := range ds {
		out[d.Severity]++
	}
	return out
}

// Format returns a multiline listing of all entries.
func (ds Diagnostics) Format() string {
	var b strings.Builder
	for i, d := range ds {
		if i > 0 {
			b.WriteString("\n")
		}
		switch d.Severity {
		case SeverityError:
			fmt.Fprintf(&b, "✗ %s", d.Format())
		case SeverityWarn:
			fmt.Fprintf(&b, "⚠ %s", d.Format())
		default:
			fmt.Fprintf(&b, "· %s", d.Format())
		}
		if d.Suggestion != nil && d.Suggestion.Detail != "" {
			fmt.Fprintf(&b, "\n  suggestion: %s", d.Suggestion.Detail)
		}
	}
	return b.String()
}
