package a2ui

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghkdsigm/figma-auto/internal/figma"
)

func f64(v float64) *float64 { return &v }

func bptr(v bool) *bool { return &v }

func solid(r, g, b float64) figma.Paint {
	return figma.Paint{Type: figma.PaintSolid, Color: &figma.Color{R: r, G: g, B: b, A: 1}}
}

func TestNormalizeButtonText(t *testing.T) {
	raw := &figma.RawNode{ID: "1:2", Name: "cta", Type: figma.TypeText, Characters: " 확인 "}

	tests := []struct {
		name   string
		policy Policy
		want   NodeType
	}{
		{"tolerant promotes", PolicyTolerant, TypeButton},
		{"strict promotes", PolicyStrict, TypeButton},
		{"raw keeps text", PolicyRaw, TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, diags := Normalize(raw, tt.policy, nil)
			require.NotNil(t, node)
			assert.Equal(t, tt.want, node.Type)
			if tt.want == TypeButton {
				assert.Equal(t, "확인", node.Label)
				assert.Equal(t, "primary", node.Intent)
				assert.Equal(t, "md", node.Size)
				require.Len(t, diags, 1)
				assert.Equal(t, CodeHeuristicButtonText, diags[0].Code)
				assert.Equal(t, SeverityInfo, diags[0].Severity)
			} else {
				assert.Equal(t, " 확인 ", node.Text)
				assert.Empty(t, diags)
			}
		})
	}
}

func TestNormalizeRectangle(t *testing.T) {
	t.Run("no paint is dropped silently", func(t *testing.T) {
		node, diags := Normalize(&figma.RawNode{ID: "1:1", Type: figma.TypeRectangle}, PolicyTolerant, nil)
		assert.Nil(t, node)
		assert.Empty(t, diags)
	})
	t.Run("solid fill becomes a frame", func(t *testing.T) {
		node, _ := Normalize(&figma.RawNode{
			ID: "1:1", Type: figma.TypeRectangle, Fills: []figma.Paint{solid(1, 0, 0)},
		}, PolicyTolerant, nil)
		require.NotNil(t, node)
		assert.Equal(t, TypeFrame, node.Type)
		assert.Empty(t, node.Children)
		c, ok := node.Style.FirstFill()
		require.True(t, ok)
		assert.Equal(t, "#ff0000", c.Hex())
	})
	t.Run("image fill becomes an image", func(t *testing.T) {
		node, _ := Normalize(&figma.RawNode{
			ID: "1:1", Type: figma.TypeRectangle, Fills: []figma.Paint{{Type: figma.PaintImage, ImageRef: "abc"}},
		}, PolicyTolerant, nil)
		require.NotNil(t, node)
		assert.Equal(t, TypeImage, node.Type)
		assert.Equal(t, "1:1", node.SrcRef)
	})
}

func TestNormalizeHiddenAndUnsupported(t *testing.T) {
	raw := &figma.RawNode{
		ID: "0:1", Name: "Screen", Type: figma.TypeFrame,
		Children: []*figma.RawNode{
			{ID: "1:1", Name: "ghost", Type: figma.TypeText, Characters: "hi", Visible: bptr(false)},
			{ID: "1:2", Name: "slice", Type: "SLICE"},
			{ID: "1:3", Name: "copy", Type: figma.TypeText, Characters: "Welcome back"},
		},
	}
	node, diags := Normalize(raw, PolicyTolerant, nil)
	require.NotNil(t, node)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "Welcome back", node.Children[0].Text)
	assert.Equal(t, []string{"Screen", "copy"}, node.Children[0].Ref.NamePath)

	require.Len(t, diags, 1)
	assert.Equal(t, CodeNodeDropped, diags[0].Code)
	assert.Equal(t, "1:2", diags[0].NodeID)
}

func TestNormalizeIconCollapse(t *testing.T) {
	raw := &figma.RawNode{
		ID: "0:1", Type: figma.TypeFrame,
		Children: []*figma.RawNode{{
			ID: "2:1", Name: "icon/close", Type: figma.TypeGroup,
			Children: []*figma.RawNode{
				{ID: "2:2", Type: figma.TypeVector},
				{ID: "2:3", Type: "BOOLEAN_OPERATION"},
			},
		}},
	}
	node, _ := Normalize(raw, PolicyTolerant, nil)
	require.Len(t, node.Children, 1)
	icon := node.Children[0]
	assert.Equal(t, TypeImage, icon.Type)
	assert.Equal(t, "2:1", icon.SrcRef)
	assert.Empty(t, icon.Children)
}

func TestNormalizeInstanceProvenance(t *testing.T) {
	raw := &figma.RawNode{
		ID: "5:1", Name: "Card", Type: figma.TypeInstance, ComponentID: "9:9",
		Children: []*figma.RawNode{
			{ID: "I5:1;7:1", Name: "title", Type: figma.TypeText, Characters: "Title"},
			{ID: "I5:1;7:2", Name: "thumb", Type: figma.TypeVector},
		},
	}
	node, _ := Normalize(raw, PolicyTolerant, nil)
	require.Len(t, node.Children, 2)

	assert.Equal(t, "5:1", node.Ref.FigmaNodeID)
	assert.Equal(t, "9:9", node.Ref.ComponentKey)

	for _, c := range node.Children {
		assert.Equal(t, "5:1", c.Ref.FigmaNodeID, c.Name)
		assert.Equal(t, "9:9", c.Ref.ComponentKey, c.Name)
	}
	assert.Equal(t, "I5:1;7:1", node.Children[0].ID)
}

func TestNormalizeOrphanPartID(t *testing.T) {
	node, _ := Normalize(&figma.RawNode{ID: "I3:4;5:6", Type: figma.TypeVector}, PolicyTolerant, nil)
	require.NotNil(t, node)
	assert.Equal(t, "3:4", node.Ref.FigmaNodeID)
}

func TestNormalizeLine(t *testing.T) {
	node, _ := Normalize(&figma.RawNode{
		ID: "1:1", Type: figma.TypeLine, StrokeWeight: f64(0.5),
		Strokes: []figma.Paint{solid(0, 0, 1)},
	}, PolicyTolerant, nil)
	require.NotNil(t, node)
	assert.Equal(t, TypeFrame, node.Type)
	h, ok := node.Layout.Height.Fixed()
	require.True(t, ok)
	assert.Equal(t, 1.0, h)
	c, ok := node.Style.FirstFill()
	require.True(t, ok)
	assert.Equal(t, "#0000ff", c.Hex())
}

func TestNormalizeLayout(t *testing.T) {
	raw := &figma.RawNode{
		ID: "0:1", Type: figma.TypeFrame, LayoutMode: "HORIZONTAL",
		PrimaryAxisAlignItems: "SPACE_BETWEEN", CounterAxisAlignItems: "CENTER",
		ItemSpacing: f64(8), PaddingTop: 4, PaddingLeft: 16,
		Width: f64(320), LayoutSizingVertical: "HUG",
		Children: []*figma.RawNode{
			{ID: "1:1", Type: figma.TypeFrame, LayoutGrow: 1, Size: &figma.Vector{X: 10, Y: 20}},
			{ID: "1:2", Type: figma.TypeFrame, LayoutAlign: "STRETCH", AbsoluteBoundingBox: &figma.Rect{Width: 30, Height: 40}},
			{ID: "1:3", Type: figma.TypeFrame},
		},
	}
	node, _ := Normalize(raw, PolicyTolerant, nil)
	require.NotNil(t, node.Layout)

	l := node.Layout
	assert.Equal(t, "flex", l.Display)
	assert.Equal(t, "row", l.Direction)
	assert.Equal(t, "between", l.Justify)
	assert.Equal(t, "center", l.Align)
	assert.Equal(t, 8.0, *l.Gap)
	assert.Equal(t, []float64{4, 0, 0, 16}, l.Padding)
	w, _ := l.Width.Fixed()
	assert.Equal(t, 320.0, w)
	assert.True(t, l.Height.IsHug())

	require.Len(t, node.Children, 3)
	grow := node.Children[0].Layout
	assert.True(t, grow.Width.IsFill())
	h, _ := grow.Height.Fixed()
	assert.Equal(t, 20.0, h)

	stretch := node.Children[1].Layout
	assert.True(t, stretch.Height.IsFill())
	w, _ = stretch.Width.Fixed()
	assert.Equal(t, 30.0, w)

	assert.Nil(t, node.Children[2].Layout)
}

func TestNormalizeTypography(t *testing.T) {
	node, _ := Normalize(&figma.RawNode{
		ID: "1:1", Type: figma.TypeText, Characters: "Heading",
		Fills: []figma.Paint{{Type: figma.PaintSolid, Opacity: f64(0.5), Color: &figma.Color{A: 1}}},
		Style: &figma.TypeStyle{FontFamily: "Inter", FontPostScriptName: "Inter-SemiBold", FontSize: f64(22)},
	}, PolicyRaw, nil)
	require.NotNil(t, node.Style)
	require.NotNil(t, node.Style.Typography)
	assert.Equal(t, 600.0, *node.Style.Typography.FontWeight)
	assert.Equal(t, 22.0, *node.Style.Typography.FontSize)
	assert.Equal(t, 0.5, node.Style.Fills[0].Color.A)
	assert.Len(t, node.Ref.StyleSignature, 12)
}

func TestNormalizeGeneratesMissingIDs(t *testing.T) {
	n := NewNormalizer(nil)
	n.NewID = func() string { return "generated" }
	node, _ := n.Normalize(&figma.RawNode{Type: figma.TypeText, Characters: "x"}, PolicyRaw, []string{"root"})
	assert.Equal(t, "generated", node.ID)
	assert.Equal(t, []string{"root"}, node.Ref.NamePath)
}

func TestStyleSignatureStable(t *testing.T) {
	mk := func() *figma.RawNode {
		return &figma.RawNode{ID: "1:1", Type: figma.TypeFrame, Fills: []figma.Paint{solid(0.2, 0.4, 0.6)}, CornerRadius: f64(8)}
	}
	a, _ := Normalize(mk(), PolicyTolerant, nil)
	b, _ := Normalize(mk(), PolicyTolerant, nil)
	assert.Equal(t, a.Ref.StyleSignature, b.Ref.StyleSignature)
	assert.NotEmpty(t, a.Ref.StyleSignature)
}

func TestDimensionJSON(t *testing.T) {
	var l Layout
	require.NoError(t, json.Unmarshal([]byte(`{"width":"fill","height":"24"}`), &l))
	assert.True(t, l.Width.IsFill())
	h, ok := l.Height.Fixed()
	require.True(t, ok)
	assert.Equal(t, 24.0, h)

	out, err := json.Marshal(Layout{Width: Hug(), Height: Pixels(12.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":"hug","height":12.5}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"width":"wide"}`), &l))
}

func TestDiagnostics(t *testing.T) {
	var ds Diagnostics
	n := &Node{ID: "1", Ref: &Ref{NamePath: []string{"a", "b"}}}
	ds.Info(n, CodeNodeDropped, "dropped", nil)
	ds.Warn(n, CodeColorApprox, "approx", &Suggestion{Action: "review_token", Detail: "add a token"})
	ds.Report(SeverityError, nil, CodeUnsupportedNode, "bad", nil)

	assert.True(t, ds.HasErrors())
	assert.Len(t, ds.Errors(), 1)
	assert.Len(t, ds.Warnings(), 1)
	assert.Equal(t, map[Severity]int{SeverityInfo: 1, SeverityWarn: 1, SeverityError: 1}, ds.Count())
	assert.Equal(t, "a/b: approx [DS_COLOR_APPROX]", ds[1].Format())
	assert.Contains(t, ds.Format(), "suggestion: add a token")
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyTolerant, "strict": PolicyStrict, " Raw ": PolicyRaw, "MIXED": PolicyMixed} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolicy("loose")
	assert.Error(t, err)
}
