package dsmap

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
	"github.com/ghkdsigm/figma-auto/internal/heuristics"
)

// ImagePlaceholderPrefix marks an img src still waiting for a rendered URL.
const ImagePlaceholderPrefix = "__FIGMA_NODE__:"

// Distances above these thresholds are reported as approximations.
const (
	ColorApproxThreshold = 18.0
	GapApproxThreshold   = 2.0
)

var buttonIntents = []string{"primary", "secondary", "danger"}

// Mapper maps semantic trees onto a design system.
type Mapper struct {
	DS     *DesignSystem
	Tables *heuristics.Tables
	Logger *zap.Logger

	// Now stamps envelopes built by MapRoot.
	Now func() time.Time
}

// NewMapper returns a Mapper. Nil arguments select the embedded design
// system, the embedded tables and a no-op logger.
func NewMapper(ds *DesignSystem, tables *heuristics.Tables, logger *zap.Logger) *Mapper {
	if ds == nil {
		ds = DefaultDesignSystem()
	}
	if tables == nil {
		tables = heuristics.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{DS: ds, Tables: tables, Logger: logger.Named("dsmap"), Now: time.Now}
}

// Map maps tree under policy. It returns the diagnostics produced while
// mapping. Under STRICT any error diagnostic aborts with a
// *MappingFailedError and no tree.
func (m *Mapper) Map(tree *a2ui.Node, policy a2ui.Policy) (*ComponentNode, a2ui.Diagnostics, error) {
	return m.mapTree(tree, policy, nil)
}

// MapRoot maps a normalized envelope. The returned diagnostics start with
// the envelope's own.
func (m *Mapper) MapRoot(root *a2ui.Root, policy a2ui.Policy) (*Root, error) {
	tree, diags, err := m.mapTree(root.Tree, policy, root.Diagnostics)
	if err != nil {
		return nil, err
	}
	return &Root{
		Version:     a2ui.Version,
		Meta:        Meta{GeneratedAt: m.Now().UTC(), Policy: policy, FileKey: root.Meta.FileKey},
		Tree:        tree,
		Diagnostics: diags,
	}, nil
}

func (m *Mapper) mapTree(tree *a2ui.Node, policy a2ui.Policy, seed a2ui.Diagnostics) (*ComponentNode, a2ui.Diagnostics, error) {
	run := &mapRun{
		Mapper:   m,
		policy:   policy,
		strategy: strategyFor(policy),
		diags:    append(a2ui.Diagnostics{}, seed...),
	}
	out := run.node(tree, "")
	if out == nil {
		out = &ComponentNode{ID: "nil", Kind: KindElement, Name: "div"}
	}

	m.Logger.Debug("mapped tree",
		zap.Stringer("policy", policy),
		zap.Int("diagnostics", len(run.diags)-len(seed)))

	if policy == a2ui.PolicyStrict && run.diags.HasErrors() {
		return nil, run.diags, &MappingFailedError{Diagnostics: run.diags}
	}
	return out, run.diags, nil
}

// strategy holds the policy-specific mappings. Inputs, images and
// unsupported nodes map the same way under every policy.
type strategy interface {
	button(r *mapRun, n *a2ui.Node) *ComponentNode
	text(r *mapRun, n *a2ui.Node) *ComponentNode
	frame(r *mapRun, n *a2ui.Node, parentDir string) *ComponentNode
}

func strategyFor(p a2ui.Policy) strategy {
	switch p {
	case a2ui.PolicyRaw:
		return rawStrategy{}
	case a2ui.PolicyStrict:
		return dsStrategy{strict: true}
	default:
		return dsStrategy{}
	}
}

type mapRun struct {
	*Mapper
	policy   a2ui.Policy
	strategy strategy
	diags    a2ui.Diagnostics
}

func (r *mapRun) node(n *a2ui.Node, parentDir string) *ComponentNode {
	if n == nil {
		return nil
	}
	switch n.Type {
	case a2ui.TypeButton:
		return r.strategy.button(r, n)
	case a2ui.TypeText:
		return r.strategy.text(r, n)
	case a2ui.TypeInput:
		return r.input(n)
	case a2ui.TypeImage:
		return r.image(n, parentDir)
	case a2ui.TypeFrame:
		return r.strategy.frame(r, n, parentDir)
	}
	return r.unsupported(n)
}

func (r *mapRun) children(n *a2ui.Node) []*ComponentNode {
	dir := direction(n)
	var out []*ComponentNode
	for _, c := range n.Children {
		if m := r.node(c, dir); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// severity escalates to error under STRICT.
func (r *mapRun) severity() a2ui.Severity {
	if r.policy == a2ui.PolicyStrict {
		return a2ui.SeverityError
	}
	return a2ui.SeverityWarn
}

func (r *mapRun) input(n *a2ui.Node) *ComponentNode {
	c := newNode(n, KindComponent, "BaseInput")
	c.Props = P("placeholder", n.Placeholder)
	return c
}

func (r *mapRun) image(n *a2ui.Node, parentDir string) *ComponentNode {
	src := ""
	if n.Ref != nil && n.Ref.FigmaNodeID != "" {
		src = ImagePlaceholderPrefix + n.Ref.FigmaNodeID
	}

	classes := []string{"object-cover"}
	l := layoutOf(n)
	if l.Width.IsFill() {
		classes = append(classes, fillClasses("w", parentDir == "row")...)
	} else if w, ok := l.Width.Fixed(); ok {
		classes = append(classes, arbitrary("w", w))
	}
	if l.Height.IsFill() {
		classes = append(classes, fillClasses("h", parentDir == "column")...)
	} else if h, ok := l.Height.Fixed(); ok {
		classes = append(classes, arbitrary("h", h))
	}
	if n.Style != nil && n.Style.Radius != nil {
		classes = append(classes, arbitrary("rounded", *n.Style.Radius))
	} else {
		classes = append(classes, "rounded")
	}

	c := newNode(n, KindElement, "img")
	c.Props = P("alt", n.Name, "src", src)
	c.Classes = classes
	return c
}

func (r *mapRun) unsupported(n *a2ui.Node) *ComponentNode {
	r.diags.Report(r.severity(), n, a2ui.CodeUnsupportedNode,
		fmt.Sprintf("no design system mapping for node type %q", n.Type),
		&a2ui.Suggestion{Action: "fallback_unsafe_box", Detail: "wrapped in UnsafeBox so generation can continue"})

	c := newNode(n, KindComponent, "UnsafeBox")
	c.Props = P("originalType", string(n.Type), "debugName", n.Name)
	c.Children = r.children(n)
	return c
}

type dsStrategy struct {
	strict bool
}

func (s dsStrategy) button(r *mapRun, n *a2ui.Node) *ComponentNode {
	intent := or(n.Intent, "primary")
	if !slices.Contains(buttonIntents, intent) {
		r.diags.Report(r.severity(), n, a2ui.CodeButtonIntentUnknown,
			fmt.Sprintf("unknown button intent %q", intent),
			&a2ui.Suggestion{Action: "map_to_nearest", Detail: "falls back to primary"})
		intent = "primary"
	}
	c := newNode(n, KindComponent, "BaseButton")
	c.Props = P("intent", intent, "size", or(n.Size, "md"), "label", n.Label)
	return c
}

func (s dsStrategy) text(r *mapRun, n *a2ui.Node) *ComponentNode {
	fontSize := 16.0
	if n.Style != nil && n.Style.Typography != nil && n.Style.Typography.FontSize != nil {
		fontSize = *n.Style.Typography.FontSize
	}
	props := P("variant", r.DS.Tokens.Typography.Variant(fontSize), "text", n.Text)

	if fill, ok := n.Style.FirstFill(); ok {
		if tok, dist, ok := NearestColor(fill, r.DS.Tokens.Colors); ok {
			props.Set("colorToken", tok.Name)
			if dist > ColorApproxThreshold {
				r.diags.Warn(n, a2ui.CodeColorApprox,
					fmt.Sprintf("text colour %s approximated by token %s (distance=%.1f)", fill.Hex(), tok.Name, dist),
					&a2ui.Suggestion{Action: "review_token", Detail: "align the colour with a design token"})
			}
		}
	}

	c := newNode(n, KindComponent, "Typography")
	c.Props = props
	return c
}

func (s dsStrategy) frame(r *mapRun, n *a2ui.Node, parentDir string) *ComponentNode {
	if s.strict {
		if c := r.inferStrict(n); c != nil {
			return c
		}
	}
	if arch := r.Tables.MatchArchetype(n.Name, false); arch != "" {
		if c := r.archetype(arch, n, a2ui.FirstText(n), false); c != nil {
			c.Children = r.children(n)
			return c
		}
	}

	var classes []string
	if l := n.Layout; l != nil && l.Display == "flex" {
		classes = append(classes, "flex")
		switch l.Direction {
		case "row":
			classes = append(classes, "flex-row")
		case "column":
			classes = append(classes, "flex-col")
		}
		if v, ok := justifyClasses[l.Justify]; ok {
			classes = append(classes, v)
		}
		if v, ok := alignClasses[l.Align]; ok {
			classes = append(classes, v)
		}
		if l.Gap != nil {
			classes = append(classes, r.gapClass(n, *l.Gap))
		}
		classes = append(classes, r.paddingClasses(l.Padding)...)
	}

	c := newNode(n, KindElement, "div")
	c.Classes = classes
	c.Children = r.children(n)
	return c
}

func (r *mapRun) gapClass(n *a2ui.Node, gap float64) string {
	tok, dist, ok := NearestSpacing(gap, r.DS.Tokens.Spacing)
	if !ok {
		return arbitrary("gap", gap)
	}
	if dist > GapApproxThreshold {
		r.diags.Warn(n, a2ui.CodeGapApprox,
			fmt.Sprintf("gap %spx approximated by spacing token %s=%spx", num(gap), tok.Name, num(tok.Px)),
			&a2ui.Suggestion{Action: "review_spacing", Detail: "adjust the gap or add a spacing token"})
	}
	return "gap-" + tok.Name
}

var paddingSides = [4]string{"pt", "pr", "pb", "pl"}

// paddingClasses snaps padding to spacing tokens, collapsing to p-<token>
// when all four sides land on the same token.
func (r *mapRun) paddingClasses(p []float64) []string {
	if len(p) != 4 || !slices.ContainsFunc(p, func(v float64) bool { return v != 0 }) {
		return nil
	}
	scale := r.DS.Tokens.Spacing
	var names [4]string
	for i, v := range p {
		if tok, _, ok := NearestSpacing(v, scale); ok {
			names[i] = tok.Name
		}
	}
	if names[0] != "" && names[0] == names[1] && names[0] == names[2] && names[0] == names[3] {
		return []string{"p-" + names[0]}
	}
	var out []string
	for i, v := range p {
		if v == 0 {
			continue
		}
		if names[i] != "" {
			out = append(out, paddingSides[i]+"-"+names[i])
		} else {
			out = append(out, arbitrary(paddingSides[i], v))
		}
	}
	return out
}

// inferStrict recognises components from the node name and its name path.
// Matches are returned without children.
func (r *mapRun) inferStrict(n *a2ui.Node) *ComponentNode {
	hints := n.Name
	if n.Ref != nil && len(n.Ref.NamePath) > 0 {
		hints = strings.TrimSpace(hints + " " + strings.Join(n.Ref.NamePath, "/"))
	}
	label := a2ui.FirstText(n)

	for _, arch := range r.Tables.MatchArchetypes(hints, true) {
		switch arch {
		case "button":
			if label == "" {
				continue
			}
			c := newNode(n, KindComponent, "BaseButton")
			c.Props = P("intent", r.inferIntent(n, hints), "size", inferSize(n), "label", label)
			return c
		case "input":
			c := newNode(n, KindComponent, "BaseInput")
			c.Props = P("placeholder", label)
			return c
		}
		if c := r.archetype(arch, n, label, true); c != nil {
			return c
		}
	}
	return nil
}

// inferIntent reads intent keywords from hints, then falls back to the
// palette entry nearest the fill.
func (r *mapRun) inferIntent(n *a2ui.Node, hints string) string {
	if intent := r.Tables.IntentHint(hints); intent != "" {
		return intent
	}
	fill, ok := n.Style.FirstFill()
	if !ok {
		return "primary"
	}
	var candidates Palette
	for _, name := range []string{"primary", "danger", "surface"} {
		if tok, ok := r.DS.Tokens.Colors.Get(name); ok {
			candidates = append(candidates, tok)
		}
	}
	tok, _, ok := NearestColor(fill, candidates)
	if !ok {
		return "primary"
	}
	switch tok.Name {
	case "danger":
		return "danger"
	case "surface":
		return "secondary"
	}
	return "primary"
}

func inferSize(n *a2ui.Node) string {
	h, ok := layoutOf(n).Height.Fixed()
	switch {
	case !ok:
		return "md"
	case h <= 32:
		return "sm"
	case h <= 44:
		return "md"
	}
	return "lg"
}

// archetype builds the component for a recognised archetype. Under strict
// inference the toggle-like controls also carry a size.
func (r *mapRun) archetype(arch string, n *a2ui.Node, label string, strict bool) *ComponentNode {
	var name string
	var props Props
	sized := false
	switch arch {
	case "select":
		name, props = "BaseSelect", P("placeholder", label)
	case "checkbox":
		name, props, sized = "BaseCheckbox", P("label", label, "checked", false), true
	case "radio":
		name, props, sized = "BaseRadio", P("label", label, "checked", false, "name", "radio"), true
	case "togglebutton":
		name, props = "ToggleButton", P("label", label, "checked", false, "intent", "primary", "size", "md")
	case "switch":
		name, props, sized = "BaseSwitch", P("label", label, "checked", false), true
	case "calendar":
		name, props = "CalendarInput", P("value", "")
	case "slider":
		name, props = "RangeSlider", P("min", 0, "max", 100, "value", 50)
	case "hamburger":
		name, props = "HamburgerButton", Props{}
	case "menu":
		name, props = "MenuList", Props{}
	case "card":
		name, props = "ThumbnailCard", P("title", label)
	case "carousel":
		name, props = "Carousel", Props{}
	case "popup":
		name, props = "Popup", P("title", or(n.Name, "Popup"))
	case "loading":
		name, props = "Loading", P("label", label, "size", "md")
	case "flag":
		name, props = "Flag", P("text", label, "intent", "secondary")
	case "tabs":
		name, props = "Tabs", P("modelValue", "", "tabs", []any{})
	case "alert":
		name, props = "AlertDialog", P("title", "알림", "message", label)
	default:
		r.Logger.Debug("archetype has no component", zap.String("archetype", arch))
		return nil
	}
	if strict && sized {
		props.Set("size", inferSize(n))
	}
	c := newNode(n, KindComponent, name)
	c.Props = props
	return c
}

type rawStrategy struct{}

func (rawStrategy) button(r *mapRun, n *a2ui.Node) *ComponentNode {
	intent := or(n.Intent, "primary")
	classes := []string{"inline-flex", "items-center", "justify-center", "rounded-lg", "font-medium"}
	switch n.Size {
	case "sm":
		classes = append(classes, "px-3", "py-1.5", "text-sm")
	case "lg":
		classes = append(classes, "px-5", "py-3", "text-base")
	default:
		classes = append(classes, "px-4", "py-2", "text-sm")
	}
	switch intent {
	case "secondary":
		classes = append(classes, "bg-white", "border", "border-[var(--ds-border)]")
	case "danger":
		classes = append(classes, "bg-[var(--ds-danger)]")
	default:
		classes = append(classes, "bg-[var(--ds-primary)]")
	}
	switch fill, ok := n.Style.FirstFill(); {
	case ok:
		classes = append(classes, "text-["+fill.Hex()+"]")
	case intent == "secondary":
		classes = append(classes, "text-[var(--ds-fg)]")
	default:
		classes = append(classes, "text-white")
	}
	classes = append(classes, "shadow-sm",
		"focus:outline-none", "focus:ring-2", "focus:ring-[var(--ds-primary)]", "focus:ring-offset-2")

	c := newNode(n, KindElement, "button")
	c.Classes = classes
	c.Children = []*ComponentNode{{
		ID:    n.ID + "_label",
		Ref:   n.Ref,
		Kind:  KindElement,
		Name:  "span",
		Props: P("text", n.Label),
	}}
	return c
}

func (rawStrategy) text(r *mapRun, n *a2ui.Node) *ComponentNode {
	var t a2ui.Typography
	if n.Style != nil && n.Style.Typography != nil {
		t = *n.Style.Typography
	}
	size := 16.0
	if t.FontSize != nil {
		size = *t.FontSize
	}
	classes := []string{arbitrary("text", size)}
	if t.FontWeight != nil {
		classes = append(classes, "font-["+num(*t.FontWeight)+"]")
	}
	if t.LineHeight != nil {
		classes = append(classes, arbitrary("leading", *t.LineHeight))
	}
	if t.LetterSpacing != nil {
		classes = append(classes, arbitrary("tracking", *t.LetterSpacing))
	}
	if family := strings.ReplaceAll(strings.TrimSpace(t.FontFamily), `"`, ""); family != "" {
		classes = append(classes, `font-["`+family+`"]`)
	}
	if fill, ok := n.Style.FirstFill(); ok {
		classes = append(classes, "text-["+fill.Hex()+"]")
	}

	c := newNode(n, KindElement, "span")
	c.Classes = classes
	c.Props = P("text", n.Text)
	return c
}

// buttonSkin matches child button classes that the enclosing frame's own
// paint replaces when the two are merged.
var buttonSkin = []string{"bg-", "px-", "py-", "rounded", "shadow"}

func (rawStrategy) frame(r *mapRun, n *a2ui.Node, parentDir string) *ComponentNode {
	l := layoutOf(n)
	var classes []string

	if l.Display == "" || l.Display == "flex" {
		classes = append(classes, "flex")
		if l.Direction == "row" {
			classes = append(classes, "flex-row")
		} else {
			classes = append(classes, "flex-col")
		}
		classes = append(classes, or(justifyClasses[l.Justify], "justify-start"), or(alignClasses[l.Align], "items-start"))
		if l.Gap != nil {
			classes = append(classes, arbitrary("gap", *l.Gap))
		}
	}

	switch {
	case l.Width.IsFill():
		classes = append(classes, fillClasses("w", parentDir == "row")...)
	case l.Width.IsHug():
		classes = append(classes, "w-fit")
	default:
		if w, ok := l.Width.Fixed(); ok {
			classes = append(classes, arbitrary("w", w))
		}
	}
	switch {
	case l.Height.IsFill():
		classes = append(classes, fillClasses("h", parentDir == "column")...)
	case l.Height.IsHug():
		classes = append(classes, "h-fit")
	default:
		if h, ok := l.Height.Fixed(); ok {
			classes = append(classes, arbitrary("h", h))
		}
	}

	if len(l.Padding) == 4 {
		for i, v := range l.Padding {
			classes = append(classes, arbitrary(paddingSides[i], v))
		}
	}

	if st := n.Style; st != nil {
		if fill, ok := st.FirstFill(); ok {
			classes = append(classes, "bg-["+fill.Hex()+"]")
		}
		if st.Radius != nil {
			classes = append(classes, arbitrary("rounded", *st.Radius))
		}
		if sh := st.Shadow; sh != nil {
			classes = append(classes, shadowClass(sh))
		}
		if len(st.Strokes) > 0 {
			classes = append(classes, "border", "border-["+st.Strokes[0].Color.Hex()+"]")
			if st.StrokeWeight != nil && *st.StrokeWeight != 1 {
				classes = append(classes, arbitrary("border", *st.StrokeWeight))
			}
		}
	}

	children := r.children(n)

	// A frame wrapping a single button is the button.
	if len(children) == 1 && children[0].Kind == KindElement && children[0].Name == "button" {
		only := children[0]
		merged := slices.Clone(classes)
		for _, cls := range only.Classes {
			if !hasAnyPrefix(cls, buttonSkin) {
				merged = append(merged, cls)
			}
		}
		c := newNode(n, KindElement, "button")
		c.Props = only.Props
		c.Classes = merged
		c.Children = only.Children
		return c
	}

	c := newNode(n, KindElement, "div")
	c.Classes = classes
	c.Children = children
	return c
}

var justifyClasses = map[string]string{
	"start":   "justify-start",
	"center":  "justify-center",
	"end":     "justify-end",
	"between": "justify-between",
}

var alignClasses = map[string]string{
	"start":   "items-start",
	"center":  "items-center",
	"end":     "items-end",
	"stretch": "items-stretch",
}

func shadowClass(s *a2ui.Shadow) string {
	r, g, b := s.Color.RGB255()
	a := max(0, min(1, s.Color.A))
	return fmt.Sprintf("shadow-[%spx_%spx_%spx_%spx_rgba(%s,%s,%s,%s)]",
		num(s.X), num(s.Y), num(s.Blur), num(s.Spread),
		num(r), num(g), num(b), strconv.FormatFloat(a, 'f', 3, 64))
}

// fillClasses stretches along the parent's main axis when main is set,
// otherwise takes the full cross size.
func fillClasses(axis string, main bool) []string {
	if main {
		return []string{"flex-1", "min-" + axis + "-0"}
	}
	return []string{axis + "-full"}
}

func newNode(n *a2ui.Node, kind Kind, name string) *ComponentNode {
	return &ComponentNode{ID: n.ID, Ref: n.Ref, Kind: kind, Name: name}
}

func layoutOf(n *a2ui.Node) a2ui.Layout {
	if n.Layout == nil {
		return a2ui.Layout{}
	}
	return *n.Layout
}

func direction(n *a2ui.Node) string {
	if n.Layout == nil {
		return ""
	}
	return n.Layout.Direction
}

func arbitrary(prefix string, px float64) string {
	return prefix + "-[" + num(px) + "px]"
}

// num formats like a JavaScript number: no trailing zeros, no exponent for
// ordinary sizes.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
