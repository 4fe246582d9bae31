package dsmap

import (
	_ "embed"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
)

//go:embed design-system.json
var defaultDesignSystem []byte

// EmbeddedSource is reported as the source of the built-in design system.
const EmbeddedSource = "embedded:design-system.json"

// DesignSystem is the token and component vocabulary the mapper targets.
// Token tables keep the order of the source document; nearest-token ties
// resolve to the earlier entry.
type DesignSystem struct {
	Name          string `yaml:"name"`
	TokensVersion string `yaml:"tokensVersion"`
	Tokens        struct {
		Spacing    SpacingScale `yaml:"spacing"`
		Colors     Palette      `yaml:"colors"`
		Typography TypeScale    `yaml:"typography"`
	} `yaml:"tokens"`
	Components ComponentSet `yaml:"components"`

	// Source is the file the system was read from.
	Source string `yaml:"-"`
}

// SpacingToken is one named spacing step.
type SpacingToken struct {
	Name string
	Px   float64
}

// SpacingScale keeps spacing tokens in document order.
type SpacingScale []SpacingToken

func (s *SpacingScale) UnmarshalYAML(n *yaml.Node) error {
	return eachPair(n, func(key string, v *yaml.Node) error {
		var px float64
		if err := v.Decode(&px); err != nil {
			return errors.Wrapf(err, "spacing %q", key)
		}
		*s = append(*s, SpacingToken{Name: key, Px: px})
		return nil
	})
}

// Get returns the token named name.
func (s SpacingScale) Get(name string) (SpacingToken, bool) {
	for _, t := range s {
		if t.Name == name {
			return t, true
		}
	}
	return SpacingToken{}, false
}

// ColorToken is a named colour on the 0-255 scale.
type ColorToken struct {
	Name    string
	R, G, B float64
}

// Palette keeps colour tokens in document order.
type Palette []ColorToken

func (p *Palette) UnmarshalYAML(n *yaml.Node) error {
	return eachPair(n, func(key string, v *yaml.Node) error {
		var c struct {
			R float64 `yaml:"r"`
			G float64 `yaml:"g"`
			B float64 `yaml:"b"`
		}
		if err := v.Decode(&c); err != nil {
			return errors.Wrapf(err, "color %q", key)
		}
		*p = append(*p, ColorToken{Name: key, R: c.R, G: c.G, B: c.B})
		return nil
	})
}

// Get returns the token named name.
func (p Palette) Get(name string) (ColorToken, bool) {
	for _, c := range p {
		if c.Name == name {
			return c, true
		}
	}
	return ColorToken{}, false
}

// TypographyRule selects Variant for font sizes of at least MinSize.
type TypographyRule struct {
	Name    string
	MinSize float64
	Variant string
}

// TypeScale keeps typography rules in document order.
type TypeScale []TypographyRule

func (t *TypeScale) UnmarshalYAML(n *yaml.Node) error {
	return eachPair(n, func(key string, v *yaml.Node) error {
		var r struct {
			MinSize float64 `yaml:"minSize"`
			Variant string  `yaml:"componentVariant"`
		}
		if err := v.Decode(&r); err != nil {
			return errors.Wrapf(err, "typography %q", key)
		}
		*t = append(*t, TypographyRule{Name: key, MinSize: r.MinSize, Variant: r.Variant})
		return nil
	})
}

// Variant picks the variant of the largest threshold fontSize reaches,
// falling back to the smallest rule.
func (t TypeScale) Variant(fontSize float64) string {
	if len(t) == 0 {
		return "body"
	}
	rules := slices.Clone(t)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].MinSize > rules[j].MinSize })
	for _, r := range rules {
		if fontSize >= r.MinSize {
			return r.Variant
		}
	}
	return rules[len(rules)-1].Variant
}

// ComponentSpec lists the allowed enum values of a component.
type ComponentSpec struct {
	Intents  []string `yaml:"intents,omitempty"`
	Sizes    []string `yaml:"sizes,omitempty"`
	Variants []string `yaml:"variants,omitempty"`
}

// ComponentDef is a component the design system provides.
type ComponentDef struct {
	Name string
	ComponentSpec
}

// ComponentSet keeps component definitions in document order.
type ComponentSet []ComponentDef

func (cs *ComponentSet) UnmarshalYAML(n *yaml.Node) error {
	return eachPair(n, func(key string, v *yaml.Node) error {
		var spec ComponentSpec
		if err := v.Decode(&spec); err != nil {
			return errors.Wrapf(err, "component %q", key)
		}
		*cs = append(*cs, ComponentDef{Name: key, ComponentSpec: spec})
		return nil
	})
}

// Names returns the component names in document order.
func (cs ComponentSet) Names() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func eachPair(n *yaml.Node, fn func(key string, v *yaml.Node) error) error {
	if n.Kind != yaml.MappingNode {
		return errors.Newf("line %d: expected an object", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// DefaultDesignSystem parses the embedded design system.
func DefaultDesignSystem() *DesignSystem {
	ds, err := ParseDesignSystem(defaultDesignSystem)
	if err != nil {
		panic(err)
	}
	ds.Source = EmbeddedSource
	return ds
}

// LoadDesignSystem reads a design-system JSON file. An empty path returns
// the embedded default.
func LoadDesignSystem(path string) (*DesignSystem, error) {
	if path == "" {
		return DefaultDesignSystem(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "reading design system %s", path),
			"omit design_system to use the built-in tokens",
		)
	}
	ds, err := ParseDesignSystem(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing design system %s", path)
	}
	ds.Source = path
	return ds, nil
}

// ParseDesignSystem decodes a design-system document. JSON is read through
// the YAML decoder so token order survives.
func ParseDesignSystem(data []byte) (*DesignSystem, error) {
	var ds DesignSystem
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, err
	}
	if ds.Name == "" {
		return nil, errors.New("design system has no name")
	}
	return &ds, nil
}

// NearestSpacing returns the spacing token closest to px by absolute
// difference, with the distance. ok is false for an empty scale.
func NearestSpacing(px float64, scale SpacingScale) (tok SpacingToken, dist float64, ok bool) {
	for i, t := range scale {
		d := math.Abs(px - t.Px)
		if i == 0 || d < dist {
			tok, dist = t, d
		}
	}
	return tok, dist, len(scale) > 0
}

// NearestColor returns the palette entry closest to c by Euclidean
// distance on rounded 0-255 channels. ok is false for an empty palette.
func NearestColor(c a2ui.Color, palette Palette) (tok ColorToken, dist float64, ok bool) {
	r, g, b := c.RGB255()
	for i, t := range palette {
		d := rgbDistance(r, g, b, t)
		if i == 0 || d < dist {
			tok, dist = t, d
		}
	}
	return tok, dist, len(palette) > 0
}

func rgbDistance(r, g, b float64, t ColorToken) float64 {
	dr, dg, db := r-t.R, g-t.G, b-t.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
