// Package manifest summarises a generated project for downstream refactor
// tooling: which components exist, which props they take, and where the
// RAW output looks like it could use a library component instead.
package manifest

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
	"github.com/ghkdsigm/figma-auto/internal/dsmap"
)

// SchemaVersion is the manifest format version.
const SchemaVersion = "0.1"

const (
	maxExamples          = 3
	maxExampleRunes      = 120
	maxRawCandidates     = 8
	maxDiagnosticsSample = 25
)

// PropSummary lists the value types seen or declared for one prop.
type PropSummary struct {
	Types    []string `json:"types"`
	Examples []any    `json:"examples,omitempty"`
}

// PropsSummary maps component name to prop name to summary.
type PropsSummary map[string]map[string]PropSummary

// DesignSystemInfo identifies the design system used for mapping.
type DesignSystemInfo struct {
	Name          string `json:"name,omitempty"`
	TokensVersion string `json:"tokensVersion,omitempty"`
	Source        string `json:"source,omitempty"`
}

// Guidance tells refactor tooling how far it may go.
type Guidance struct {
	UIChangeForbidden bool     `json:"uiChangeForbidden"`
	PreferComponents  []string `json:"preferComponents"`
	FallbackRule      string   `json:"fallbackRule"`
	Note              string   `json:"note,omitempty"`
}

// Confidence grades a raw candidate pattern.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// RawCandidate is a recurring class signature in RAW output that resembles
// a library component.
type RawCandidate struct {
	Candidate      string     `json:"candidate"`
	Confidence     Confidence `json:"confidence"`
	Reason         string     `json:"reason"`
	ExampleTag     string     `json:"exampleTag"`
	ExampleClasses []string   `json:"exampleClasses"`
	Occurrences    int        `json:"occurrences"`
}

// DiagnosticSample is a flattened diagnostic.
type DiagnosticSample struct {
	Severity a2ui.Severity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	NodeID   string        `json:"nodeId,omitempty"`
	NamePath string        `json:"namePath,omitempty"`
}

// Hints carries optional extras.
type Hints struct {
	DiagnosticsSample []DiagnosticSample `json:"diagnosticsSample,omitempty"`
}

// Manifest is the manifest.json document.
type Manifest struct {
	SchemaVersion         string            `json:"schemaVersion"`
	GeneratedAt           time.Time         `json:"generatedAt"`
	Policy                a2ui.Policy       `json:"policy"`
	Target                string            `json:"target"`
	DesignSystem          *DesignSystemInfo `json:"designSystem,omitempty"`
	CommonComponents      []string          `json:"commonComponents"`
	GeneratedComponents   []string          `json:"generatedComponents"`
	ComponentPropsSummary PropsSummary      `json:"componentPropsSummary"`
	RefactorGuidance      Guidance          `json:"refactorGuidance"`
	RawCandidatePatterns  []RawCandidate    `json:"rawCandidatePatterns,omitempty"`
	Hints                 *Hints            `json:"hints,omitempty"`
}

// Options configures Build.
type Options struct {
	Target string
	// DesignSystem contributes its identity and component names. May be nil.
	DesignSystem *dsmap.DesignSystem
	// Components holds the generated component sources keyed by name.
	Components map[string]string
}

// Build summarises root. GeneratedAt is taken from the mapped envelope so
// the same input always yields the same manifest.
func Build(root *dsmap.Root, opts Options) *Manifest {
	generated := make([]string, 0, len(opts.Components))
	for name := range opts.Components {
		generated = append(generated, name)
	}
	sort.Strings(generated)

	common := map[string]bool{}
	for _, name := range generated {
		common[name] = true
	}
	var info *DesignSystemInfo
	if ds := opts.DesignSystem; ds != nil {
		info = &DesignSystemInfo{Name: ds.Name, TokensVersion: ds.TokensVersion, Source: ds.Source}
		for _, name := range ds.Components.Names() {
			common[name] = true
		}
	}
	commonList := make([]string, 0, len(common))
	for name := range common {
		commonList = append(commonList, name)
	}
	sort.Strings(commonList)

	policy := root.Meta.Policy
	if policy == "" {
		policy = a2ui.PolicyRaw
	}
	target := opts.Target
	if target == "" {
		target = "nuxt"
	}

	m := &Manifest{
		SchemaVersion:         SchemaVersion,
		GeneratedAt:           root.Meta.GeneratedAt.UTC(),
		Policy:                policy,
		Target:                target,
		DesignSystem:          info,
		CommonComponents:      commonList,
		GeneratedComponents:   generated,
		ComponentPropsSummary: Merge(DeclaredProps(opts.Components), ObservedProps(root.Tree)),
		RefactorGuidance: Guidance{
			UIChangeForbidden: true,
			PreferComponents:  commonList,
			FallbackRule:      "keep the existing div structure whenever a replacement is uncertain or could change the UI",
			Note:              "RAW output is hand-written markup: import library components from components/ wherever possible without changing the UI",
		},
	}
	if policy == a2ui.PolicyRaw {
		m.RawCandidatePatterns = RawCandidates(root.Tree)
	}
	if sample := diagnosticsSample(root.Diagnostics); len(sample) > 0 {
		m.Hints = &Hints{DiagnosticsSample: sample}
	}
	return m
}

// MarshalJSON always writes rawCandidatePatterns for RAW manifests, as an
// empty list when nothing qualified, and never for other policies.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type plain Manifest
	p := plain(m)
	if m.Policy != a2ui.PolicyRaw {
		p.RawCandidatePatterns = nil
		return json.Marshal(&p)
	}
	cands := m.RawCandidatePatterns
	if cands == nil {
		cands = []RawCandidate{}
	}
	return json.Marshal(struct {
		*plain
		RawCandidatePatterns []RawCandidate `json:"rawCandidatePatterns"`
	}{&p, cands})
}

// JSON renders m with two-space indentation and a trailing newline.
func (m *Manifest) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ObservedProps collects prop types and up to three examples per prop of
// every component node in tree.
func ObservedProps(tree *dsmap.ComponentNode) PropsSummary {
	out := PropsSummary{}
	dsmap.Walk(tree, func(n *dsmap.ComponentNode) {
		if n.Kind != dsmap.KindComponent {
			return
		}
		props, ok := out[n.Name]
		if !ok {
			props = map[string]PropSummary{}
			out[n.Name] = props
		}
		for _, kv := range n.Props {
			s := props[kv.Key]
			s.Types = addType(s.Types, valueType(kv.Value))
			if ex, ok := example(kv.Value); ok && len(s.Examples) < maxExamples {
				s.Examples = append(s.Examples, ex)
			}
			props[kv.Key] = s
		}
	})
	return out
}

var (
	definePropsRe = regexp.MustCompile(`(?s)defineProps\s*<\s*\{(.*?)\}\s*>\s*\(\s*\)`)
	propLineRe    = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(\?)?\s*:\s*([^;]+);?$`)
	lineCommentRe = regexp.MustCompile(`//.*$`)
)

// DeclaredProps reads prop declarations of the form
// defineProps<{ name?: type; }>() from component sources. Declarations
// spanning several lines are skipped.
func DeclaredProps(sources map[string]string) PropsSummary {
	out := PropsSummary{}
	for name, src := range sources {
		if props := parseDefineProps(src); len(props) > 0 {
			out[name] = props
		}
	}
	return out
}

func parseDefineProps(src string) map[string]PropSummary {
	m := definePropsRe.FindStringSubmatch(src)
	if m == nil {
		return nil
	}
	out := map[string]PropSummary{}
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(lineCommentRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		mm := propLineRe.FindStringSubmatch(line)
		if mm == nil {
			continue
		}
		out[mm[1]] = PropSummary{Types: []string{strings.TrimSpace(mm[3])}}
	}
	return out
}

// Merge folds b into a copy of a: types are unioned and sorted, examples
// concatenated and capped.
func Merge(a, b PropsSummary) PropsSummary {
	out := PropsSummary{}
	for comp, props := range a {
		cp := make(map[string]PropSummary, len(props))
		for k, v := range props {
			cp[k] = v
		}
		out[comp] = cp
	}
	for comp, props := range b {
		dst, ok := out[comp]
		if !ok {
			dst = map[string]PropSummary{}
			out[comp] = dst
		}
		for k, v := range props {
			prev, ok := dst[k]
			if !ok {
				dst[k] = PropSummary{
					Types:    append([]string(nil), v.Types...),
					Examples: append([]any(nil), v.Examples...),
				}
				continue
			}
			types := append([]string(nil), prev.Types...)
			for _, t := range v.Types {
				types = addType(types, t)
			}
			sort.Strings(types)
			examples := append(append([]any(nil), prev.Examples...), v.Examples...)
			if len(examples) > maxExamples {
				examples = examples[:maxExamples]
			}
			dst[k] = PropSummary{Types: types, Examples: examples}
		}
	}
	return out
}

// addType inserts t into the sorted set types.
func addType(types []string, t string) []string {
	i := sort.SearchStrings(types, t)
	if i < len(types) && types[i] == t {
		return types
	}
	types = append(types, "")
	copy(types[i+1:], types[i:])
	types[i] = t
	return types
}

func valueType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, float32, float64, json.Number:
		return "number"
	case []any, []string, []int, []float64:
		return "array"
	}
	return "object"
}

// example returns v when it is small enough to quote. Long strings are
// truncated; objects and arrays are never quoted.
func example(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case string:
		if utf8.RuneCountInString(x) > maxExampleRunes {
			r := []rune(x)
			return string(r[:maxExampleRunes-3]) + "...", true
		}
		return x, true
	case bool, int, int64, float32, float64, json.Number:
		return x, true
	}
	return nil, false
}

func diagnosticsSample(diags a2ui.Diagnostics) []DiagnosticSample {
	var out []DiagnosticSample
	for _, d := range diags {
		if len(out) == maxDiagnosticsSample {
			break
		}
		if !strings.HasPrefix(d.Code, "HEURISTIC_") && !strings.HasPrefix(d.Code, "DS_") {
			continue
		}
		s := DiagnosticSample{Severity: d.Severity, Code: d.Code, Message: d.Message, NodeID: d.NodeID}
		if d.Ref != nil && len(d.Ref.NamePath) > 0 {
			s.NamePath = strings.Join(d.Ref.NamePath, "/")
		}
		out = append(out, s)
	}
	return out
}
