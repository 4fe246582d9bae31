package manifest

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
	"github.com/ghkdsigm/figma-auto/internal/dsmap"
)

const buttonSource = `<template>
  <button :class="cls" type="button"><slot /></button>
</template>

<script setup lang="ts">
const props = defineProps<{
  intent?: "primary" | "secondary" | "danger";
  size?: "sm" | "md" | "lg"; // sizing
  tabs?: Array<{ label: string; value: string }>;
}>();
</script>
`

func el(name string, classes []string, children ...*dsmap.ComponentNode) *dsmap.ComponentNode {
	return &dsmap.ComponentNode{Kind: dsmap.KindElement, Name: name, Classes: classes, Children: children}
}

func TestDeclaredProps(t *testing.T) {
	got := DeclaredProps(map[string]string{"BaseButton": buttonSource, "Empty": "<template />"})
	require.Contains(t, got, "BaseButton")
	assert.NotContains(t, got, "Empty")

	props := got["BaseButton"]
	assert.Equal(t, []string{`"primary" | "secondary" | "danger"`}, props["intent"].Types)
	assert.Equal(t, []string{`"sm" | "md" | "lg"`}, props["size"].Types)
	assert.NotContains(t, props, "tabs", "declarations with nested semicolons are skipped")
}

func TestObservedProps(t *testing.T) {
	long := strings.Repeat("가", 130)
	tree := &dsmap.ComponentNode{Kind: dsmap.KindElement, Name: "div", Children: []*dsmap.ComponentNode{
		{Kind: dsmap.KindComponent, Name: "BaseButton", Props: dsmap.P("label", "A", "size", "md")},
		{Kind: dsmap.KindComponent, Name: "BaseButton", Props: dsmap.P("label", "B")},
		{Kind: dsmap.KindComponent, Name: "BaseButton", Props: dsmap.P("label", nil)},
		{Kind: dsmap.KindComponent, Name: "BaseButton", Props: dsmap.P("label", "D")},
		{Kind: dsmap.KindComponent, Name: "Tabs", Props: dsmap.P("tabs", []any{}, "modelValue", long)},
		{Kind: dsmap.KindElement, Name: "span", Props: dsmap.P("text", "ignored")},
	}}

	got := ObservedProps(tree)
	assert.NotContains(t, got, "span")

	label := got["BaseButton"]["label"]
	assert.Equal(t, []string{"null", "string"}, label.Types)
	assert.Equal(t, []any{"A", "B", nil}, label.Examples)

	tabs := got["Tabs"]
	assert.Equal(t, []string{"array"}, tabs["tabs"].Types)
	assert.Empty(t, tabs["tabs"].Examples)
	ex := tabs["modelValue"].Examples[0].(string)
	assert.Equal(t, 120, len([]rune(ex)))
	assert.True(t, strings.HasSuffix(ex, "..."))
}

func TestMerge(t *testing.T) {
	declared := PropsSummary{"BaseButton": {"size": {Types: []string{`"sm" | "md"`}}}}
	observed := PropsSummary{
		"BaseButton": {
			"size":  {Types: []string{"string"}, Examples: []any{"md"}},
			"label": {Types: []string{"string"}, Examples: []any{"Go"}},
		},
		"Typography": {"text": {Types: []string{"string"}}},
	}
	got := Merge(declared, observed)

	assert.Equal(t, PropSummary{Types: []string{`"sm" | "md"`, "string"}, Examples: []any{"md"}}, got["BaseButton"]["size"])
	assert.Equal(t, []any{"Go"}, got["BaseButton"]["label"].Examples)
	assert.Contains(t, got, "Typography")
	assert.Len(t, declared["BaseButton"], 1, "inputs are not modified")
}

func TestRawCandidates(t *testing.T) {
	buttonHigh := []string{"rounded-lg", "bg-[#2563EB]", "px-4", "py-2"}
	buttonMedium := []string{"rounded", "border"}
	inputHigh := []string{"rounded", "border", "focus:ring-2"}
	label := &dsmap.ComponentNode{Kind: dsmap.KindElement, Name: "span", Props: dsmap.P("text", "Email")}

	tree := el("div", nil,
		el("button", buttonMedium),
		el("button", buttonHigh),
		el("button", []string{"py-2", "px-4", "bg-[#2563EB]", "rounded-lg"}),
		el("button", []string{"text-sm"}),
		el("input", inputHigh),
		el("div", []string{"flex", "flex-col"}, label, el("input", nil)),
		el("div", nil, label, el("input", []string{"rounded", "border"})),
	)

	got := RawCandidates(tree)
	require.Len(t, got, 6)

	assert.Equal(t, "BaseButton", got[0].Candidate)
	assert.Equal(t, ConfidenceHigh, got[0].Confidence)
	assert.Equal(t, 2, got[0].Occurrences, "class order does not split a pattern")
	assert.Equal(t, buttonHigh, got[0].ExampleClasses)

	assert.Equal(t, "BaseInput", got[1].Candidate)
	assert.Equal(t, ConfidenceHigh, got[1].Confidence)
	assert.Equal(t, "FormField", got[2].Candidate)
	assert.Equal(t, ConfidenceHigh, got[2].Confidence)

	var medium []string
	for _, c := range got[3:] {
		assert.Equal(t, ConfidenceMedium, c.Confidence)
		medium = append(medium, c.Candidate)
	}
	assert.Equal(t, []string{"BaseButton", "FormField", "BaseInput"}, medium)
}

func TestRawCandidatesCap(t *testing.T) {
	var kids []*dsmap.ComponentNode
	for i := 0; i < 12; i++ {
		kids = append(kids, el("button", []string{"rounded", "border", "w-[" + string(rune('a'+i)) + "]"}))
	}
	assert.Len(t, RawCandidates(el("div", nil, kids...)), 8)
}

func TestBuild(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	var diags a2ui.Diagnostics
	for i := 0; i < 30; i++ {
		diags.Add(a2ui.Diagnostic{Severity: a2ui.SeverityWarn, Code: a2ui.CodeGapApprox, Message: "gap",
			NodeID: "1:1", Ref: &a2ui.Ref{NamePath: []string{"Screen", "Row"}}})
	}
	diags = append(a2ui.Diagnostics{{Severity: a2ui.SeverityInfo, Code: a2ui.CodeNodeDropped, Message: "dropped"}}, diags...)

	root := &dsmap.Root{
		Meta:        dsmap.Meta{GeneratedAt: at, Policy: a2ui.PolicyTolerant},
		Tree:        &dsmap.ComponentNode{Kind: dsmap.KindComponent, Name: "BaseButton", Props: dsmap.P("intent", "primary")},
		Diagnostics: diags,
	}
	ds := dsmap.DefaultDesignSystem()
	m := Build(root, Options{Target: "vue", DesignSystem: ds, Components: map[string]string{"BaseButton": buttonSource, "Zeta": ""}})

	assert.Equal(t, SchemaVersion, m.SchemaVersion)
	assert.Equal(t, at.UTC(), m.GeneratedAt)
	assert.Equal(t, a2ui.PolicyTolerant, m.Policy)
	assert.Equal(t, "vue", m.Target)
	assert.Equal(t, &DesignSystemInfo{Name: ds.Name, TokensVersion: ds.TokensVersion, Source: dsmap.EmbeddedSource}, m.DesignSystem)
	assert.Equal(t, []string{"BaseButton", "Zeta"}, m.GeneratedComponents)
	assert.Contains(t, m.CommonComponents, "UnsafeBox")
	assert.Contains(t, m.CommonComponents, "Zeta")
	assert.IsIncreasing(t, m.CommonComponents)
	assert.Equal(t, m.CommonComponents, m.RefactorGuidance.PreferComponents)
	assert.True(t, m.RefactorGuidance.UIChangeForbidden)
	assert.Nil(t, m.RawCandidatePatterns)

	intent := m.ComponentPropsSummary["BaseButton"]["intent"]
	assert.Equal(t, []string{`"primary" | "secondary" | "danger"`, "string"}, intent.Types)

	require.NotNil(t, m.Hints)
	assert.Len(t, m.Hints.DiagnosticsSample, 25)
	assert.Equal(t, DiagnosticSample{Severity: a2ui.SeverityWarn, Code: a2ui.CodeGapApprox, Message: "gap", NodeID: "1:1", NamePath: "Screen/Row"},
		m.Hints.DiagnosticsSample[0])
}

func TestBuildRawAndJSON(t *testing.T) {
	root := &dsmap.Root{
		Meta: dsmap.Meta{Policy: a2ui.PolicyRaw},
		Tree: el("div", nil, el("button", []string{"rounded", "bg-white", "px-2"})),
	}
	m := Build(root, Options{})
	assert.Equal(t, "nuxt", m.Target)
	assert.Nil(t, m.DesignSystem)
	assert.Nil(t, m.Hints)
	require.Len(t, m.RawCandidatePatterns, 1)

	a, err := m.JSON()
	require.NoError(t, err)
	b, err := Build(root, Options{}).JSON()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.True(t, strings.HasSuffix(string(a), "}\n"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(a, &decoded))
	assert.Contains(t, decoded, "rawCandidatePatterns")
	assert.NotContains(t, decoded, "hints")
}

func TestRawCandidatesKey(t *testing.T) {
	tests := []struct {
		policy a2ui.Policy
		want   bool
	}{
		{a2ui.PolicyRaw, true},
		{a2ui.PolicyMixed, false},
		{a2ui.PolicyStrict, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			root := &dsmap.Root{Meta: dsmap.Meta{Policy: tt.policy}, Tree: el("div", nil)}
			data, err := Build(root, Options{}).JSON()
			require.NoError(t, err)

			var decoded map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(data, &decoded))
			got, ok := decoded["rawCandidatePatterns"]
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.JSONEq(t, "[]", string(got))
			}
		})
	}

	m := &Manifest{Policy: a2ui.PolicyTolerant, RawCandidatePatterns: []RawCandidate{{Candidate: "BaseButton"}}}
	data, err := m.JSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "rawCandidatePatterns")
}
