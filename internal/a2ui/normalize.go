package a2ui

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/ghkdsigm/figma-auto/internal/figma"
	"github.com/ghkdsigm/figma-auto/internal/heuristics"
)

// Normalizer converts raw Figma trees into semantic trees.
type Normalizer struct {
	Tables *heuristics.Tables

	// NewID generates ids for raw nodes that have none.
	NewID func() string
}

// NewNormalizer returns a Normalizer using tables, or the embedded tables
// when tables is nil.
func NewNormalizer(tables *heuristics.Tables) *Normalizer {
	if tables == nil {
		tables = heuristics.Default()
	}
	return &Normalizer{Tables: tables, NewID: uuid.NewString}
}

// Normalize converts raw with the default tables.
func Normalize(raw *figma.RawNode, policy Policy, namePath []string) (*Node, Diagnostics) {
	return NewNormalizer(nil).Normalize(raw, policy, namePath)
}

// owner is an ancestor the image endpoint can rasterize.
type owner struct {
	id          string
	componentID string
}

type normalizeRun struct {
	*Normalizer
	policy Policy
	diags  Diagnostics
}

// Normalize converts raw into a semantic tree. namePath is the path of raw
// itself; when empty it defaults to raw's name. A nil result means raw
// contributes nothing.
func (n *Normalizer) Normalize(raw *figma.RawNode, policy Policy, namePath []string) (*Node, Diagnostics) {
	if raw == nil {
		return nil, Diagnostics{}
	}
	if len(namePath) == 0 {
		namePath = []string{pathSegment(raw)}
	}
	run := &normalizeRun{Normalizer: n, policy: policy, diags: Diagnostics{}}
	node := run.node(raw, nil, namePath, nil)
	return node, run.diags
}

func (r *normalizeRun) node(raw, parent *figma.RawNode, path []string, owners []owner) *Node {
	if !raw.IsVisible() {
		return nil
	}

	switch {
	case raw.Type != figma.TypeRectangle && len(raw.Children) == 0 && hasImageFill(raw):
		return r.image(raw, parent, path, owners)
	case isContainer(raw.Type) && isIconComposition(raw):
		return r.image(raw, parent, path, owners)
	case isContainer(raw.Type):
		return r.frame(raw, parent, path, owners)
	case raw.Type == figma.TypeText:
		return r.text(raw, parent, path, owners)
	case isVectorLike(raw.Type):
		return r.image(raw, parent, path, owners)
	case raw.Type == figma.TypeLine:
		return r.line(raw, parent, path, owners)
	case raw.Type == figma.TypeRectangle:
		return r.rectangle(raw, parent, path, owners)
	}

	dropped := r.base(raw, parent, path, owners, TypeFrame)
	r.diags.Info(dropped, CodeNodeDropped,
		fmt.Sprintf("unsupported node type %s dropped", raw.Type),
		&Suggestion{Action: "ignore", Detail: "node type has no semantic representation"})
	return nil
}

// base fills the fields every variant shares.
func (r *normalizeRun) base(raw, parent *figma.RawNode, path []string, owners []owner, t NodeType) *Node {
	id := raw.ID
	if id == "" {
		id = r.NewID()
	}
	node := &Node{
		ID:     id,
		Type:   t,
		Name:   raw.Name,
		Layout: layoutOf(raw, parent),
		Style:  r.styleOf(raw),
	}
	ref := &Ref{
		FigmaNodeID:  exportID(raw.ID, owners),
		ComponentKey: componentKey(raw, owners),
		NamePath:     append([]string(nil), path...),
	}
	if node.Style != nil {
		ref.StyleSignature = styleSignature(node.Style)
	}
	node.Ref = ref
	return node
}

func (r *normalizeRun) frame(raw, parent *figma.RawNode, path []string, owners []owner) *Node {
	node := r.base(raw, parent, path, owners, TypeFrame)
	if isOwner(raw) {
		owners = append(owners, owner{id: raw.ID, componentID: raw.ComponentID})
	}
	for _, c := range raw.Children {
		if c == nil {
			continue
		}
		childPath := append(append([]string(nil), path...), pathSegment(c))
		if child := r.node(c, raw, childPath, owners); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

func (r *normalizeRun) image(raw, parent *figma.RawNode, path []string, owners []owner) *Node {
	node := r.base(raw, parent, path, owners, TypeImage)
	node.SrcRef = node.Ref.FigmaNodeID
	return node
}

func (r *normalizeRun) text(raw, parent *figma.RawNode, path []string, owners []owner) *Node {
	if r.policy != PolicyRaw && r.Tables.IsButtonText(raw.Characters) {
		node := r.base(raw, parent, path, owners, TypeButton)
		node.Label = strings.TrimSpace(raw.Characters)
		node.Intent = "primary"
		node.Size = "md"
		r.diags.Info(node, CodeHeuristicButtonText,
			fmt.Sprintf("text %q promoted to button", node.Label),
			&Suggestion{Action: "review_component", Detail: "rename the layer or wrap it in a button component if this is not a button"})
		return node
	}
	node := r.base(raw, parent, path, owners, TypeText)
	node.Text = raw.Characters
	return node
}

// line renders a rule as a thin filled box.
func (r *normalizeRun) line(raw, parent *figma.RawNode, path []string, owners []owner) *Node {
	node := r.base(raw, parent, path, owners, TypeFrame)
	weight := 1.0
	if raw.StrokeWeight != nil {
		weight = math.Max(1, *raw.StrokeWeight)
	}
	if node.Layout == nil {
		node.Layout = &Layout{}
	}
	node.Layout.Height = Pixels(weight)

	strokes := visibleSolids(raw.Strokes)
	style := &Style{}
	if len(strokes) > 0 {
		style.Fills = strokes[:1]
	}
	if len(style.Fills) == 0 {
		style = nil
	}
	node.Style = style
	node.Ref.StyleSignature = ""
	if style != nil {
		node.Ref.StyleSignature = styleSignature(style)
	}
	return node
}

func (r *normalizeRun) rectangle(raw, parent *figma.RawNode, path []string, owners []owner) *Node {
	if hasImageFill(raw) {
		return r.image(raw, parent, path, owners)
	}
	if len(visibleSolids(raw.Fills)) == 0 && !hasVisiblePaint(raw.Strokes) {
		return nil
	}
	return r.base(raw, parent, path, owners, TypeFrame)
}

func isContainer(t string) bool {
	switch t {
	case figma.TypeDocument, figma.TypeCanvas, figma.TypeFrame, figma.TypeGroup, figma.TypeSection,
		figma.TypeComponent, figma.TypeComponentSet, figma.TypeInstance:
		return true
	}
	return false
}

func isVectorLike(t string) bool {
	switch t {
	case figma.TypeVector, figma.TypeStar, figma.TypeEllipse, "BOOLEAN_OPERATION", "REGULAR_POLYGON":
		return true
	}
	return false
}

// isIconComposition reports whether every visible child of raw is a
// vector-like leaf.
func isIconComposition(raw *figma.RawNode) bool {
	seen := 0
	for _, c := range raw.Children {
		if c == nil || !c.IsVisible() {
			continue
		}
		if !isVectorLike(c.Type) || len(c.Children) > 0 {
			return false
		}
		seen++
	}
	return seen > 0
}

func isOwner(raw *figma.RawNode) bool {
	switch raw.Type {
	case figma.TypeInstance, figma.TypeComponent, figma.TypeComponentSet:
		return raw.ID != "" && !strings.Contains(raw.ID, figma.InstanceSeparator)
	}
	return false
}

// exportID maps an instance-internal part id onto the nearest exportable
// ancestor. When no ancestor is known the owning instance encoded in the
// id itself ("I<owner>;<part>") is used.
func exportID(id string, owners []owner) string {
	if !strings.Contains(id, figma.InstanceSeparator) {
		return id
	}
	if len(owners) > 0 {
		return owners[len(owners)-1].id
	}
	head, _, _ := strings.Cut(id, figma.InstanceSeparator)
	return strings.TrimPrefix(head, "I")
}

func componentKey(raw *figma.RawNode, owners []owner) string {
	if raw.ComponentID != "" {
		return raw.ComponentID
	}
	if strings.Contains(raw.ID, figma.InstanceSeparator) {
		for i := len(owners) - 1; i >= 0; i-- {
			if owners[i].componentID != "" {
				return owners[i].componentID
			}
		}
	}
	return ""
}

func pathSegment(raw *figma.RawNode) string {
	if raw.Name != "" {
		return raw.Name
	}
	return raw.Type
}

func hasImageFill(raw *figma.RawNode) bool {
	for _, p := range raw.Fills {
		if p.Type == figma.PaintImage && p.IsVisible() {
			return true
		}
	}
	return false
}

func hasVisiblePaint(paints []figma.Paint) bool {
	for _, p := range paints {
		if p.IsVisible() {
			return true
		}
	}
	return false
}

func visibleSolids(paints []figma.Paint) []Paint {
	var out []Paint
	for _, p := range paints {
		if p.Type != figma.PaintSolid || !p.IsVisible() || p.Color == nil {
			continue
		}
		c := Color{R: p.Color.R, G: p.Color.G, B: p.Color.B, A: p.Color.A}
		if p.Opacity != nil {
			c.A *= *p.Opacity
		}
		out = append(out, Paint{Color: c})
	}
	return out
}

var justifyModes = map[string]string{
	"MIN":           "start",
	"CENTER":        "center",
	"MAX":           "end",
	"SPACE_BETWEEN": "between",
}

var alignModes = map[string]string{
	"MIN":      "start",
	"CENTER":   "center",
	"MAX":      "end",
	"BASELINE": "start",
	"STRETCH":  "stretch",
}

// layoutOf extracts the flex model of raw. parent decides whether raw
// stretches along its parent's axes. It returns nil when nothing is set.
func layoutOf(raw, parent *figma.RawNode) *Layout {
	l := &Layout{}
	empty := true

	switch raw.LayoutMode {
	case "HORIZONTAL", "VERTICAL":
		empty = false
		l.Display = "flex"
		l.Direction = "row"
		if raw.LayoutMode == "VERTICAL" {
			l.Direction = "column"
		}
		l.Justify = justifyModes[raw.PrimaryAxisAlignItems]
		l.Align = alignModes[raw.CounterAxisAlignItems]
		if raw.ItemSpacing != nil {
			gap := *raw.ItemSpacing
			l.Gap = &gap
		}
		if raw.PaddingTop != 0 || raw.PaddingRight != 0 || raw.PaddingBottom != 0 || raw.PaddingLeft != 0 {
			l.Padding = []float64{raw.PaddingTop, raw.PaddingRight, raw.PaddingBottom, raw.PaddingLeft}
		}
	}

	parentMode := ""
	if parent != nil {
		parentMode = parent.LayoutMode
	}
	w, h := geometry(raw)
	l.Width = dimension(raw.LayoutSizingHorizontal, w,
		(parentMode == "HORIZONTAL" && raw.LayoutGrow == 1) || (parentMode == "VERTICAL" && raw.LayoutAlign == "STRETCH"))
	l.Height = dimension(raw.LayoutSizingVertical, h,
		(parentMode == "VERTICAL" && raw.LayoutGrow == 1) || (parentMode == "HORIZONTAL" && raw.LayoutAlign == "STRETCH"))

	if empty && l.Width == nil && l.Height == nil {
		return nil
	}
	return l
}

func dimension(sizing string, px *float64, stretched bool) *Dimension {
	if sizing == "FILL" || stretched {
		return Fill()
	}
	if px != nil {
		return Pixels(*px)
	}
	if sizing == "HUG" {
		return Hug()
	}
	return nil
}

// geometry applies the precedence explicit size, then size, then the
// bounding box.
func geometry(raw *figma.RawNode) (w, h *float64) {
	w, h = raw.Width, raw.Height
	if w == nil && raw.Size != nil {
		w = &raw.Size.X
	}
	if h == nil && raw.Size != nil {
		h = &raw.Size.Y
	}
	if box := raw.AbsoluteBoundingBox; box != nil {
		if w == nil {
			w = &box.Width
		}
		if h == nil {
			h = &box.Height
		}
	}
	if w != nil {
		v := *w
		w = &v
	}
	if h != nil {
		v := *h
		h = &v
	}
	return w, h
}

func (r *normalizeRun) styleOf(raw *figma.RawNode) *Style {
	s := &Style{
		Fills:   visibleSolids(raw.Fills),
		Strokes: visibleSolids(raw.Strokes),
	}
	empty := len(s.Fills) == 0 && len(s.Strokes) == 0

	if len(s.Strokes) > 0 && raw.StrokeWeight != nil {
		w := *raw.StrokeWeight
		s.StrokeWeight = &w
	}
	if raw.CornerRadius != nil && *raw.CornerRadius > 0 {
		radius := *raw.CornerRadius
		s.Radius = &radius
		empty = false
	}
	for _, e := range raw.Effects {
		if e.Type != "DROP_SHADOW" || !e.IsVisible() || e.Color == nil {
			continue
		}
		s.Shadow = &Shadow{
			Blur:   e.Radius,
			Spread: e.Spread,
			Color:  Color{R: e.Color.R, G: e.Color.G, B: e.Color.B, A: e.Color.A},
		}
		if e.Offset != nil {
			s.Shadow.X, s.Shadow.Y = e.Offset.X, e.Offset.Y
		}
		empty = false
		break
	}
	if raw.Type == figma.TypeText && raw.Style != nil {
		if t := r.typographyOf(raw.Style); t != nil {
			s.Typography = t
			empty = false
		}
	}

	if empty {
		return nil
	}
	return s
}

func (r *normalizeRun) typographyOf(ts *figma.TypeStyle) *Typography {
	t := &Typography{
		FontFamily:    ts.FontFamily,
		FontSize:      copyFloat(ts.FontSize),
		FontWeight:    copyFloat(ts.FontWeight),
		LineHeight:    copyFloat(ts.LineHeightPx),
		LetterSpacing: copyFloat(ts.LetterSpacing),
	}
	if t.FontWeight == nil {
		for _, name := range []string{ts.FontPostScriptName, ts.FontStyle} {
			if w, ok := r.Tables.FontWeight(name); ok {
				t.FontWeight = &w
				break
			}
		}
	}
	if t.FontFamily == "" && t.FontSize == nil && t.FontWeight == nil && t.LineHeight == nil && t.LetterSpacing == nil {
		return nil
	}
	return t
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// styleSignature is a short content hash used to spot repeated styles.
func styleSignature(s *Style) string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}
