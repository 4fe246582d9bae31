// Package heuristics holds the keyword tables behind name- and text-based
// classification. The tables ship embedded and can be replaced by a YAML
// file with the same shape.
package heuristics

import (
	_ "embed"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// Archetype names a UI pattern recognised from designer-authored names.
type Archetype struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// FontWeight maps a style-name keyword to a numeric weight.
type FontWeight struct {
	Keyword string  `yaml:"keyword"`
	Weight  float64 `yaml:"weight"`
}

// Tables is the full keyword configuration.
type Tables struct {
	ButtonWords          []string     `yaml:"button_words"`
	ButtonPrefixMaxRunes int          `yaml:"button_prefix_max_runes"`
	StrictArchetypes     []Archetype  `yaml:"strict_archetypes"`
	Archetypes           []Archetype  `yaml:"archetypes"`
	FontWeights          []FontWeight `yaml:"font_weights"`
	Intents              struct {
		Danger    string `yaml:"danger"`
		Secondary string `yaml:"secondary"`
	} `yaml:"intents"`

	dangerRe    *regexp.Regexp
	secondaryRe *regexp.Regexp
}

var defaultOnce = sync.OnceValues(func() (*Tables, error) {
	return Parse(defaultTables)
})

// Default returns the embedded tables. It panics if they fail to parse,
// which would be a build defect.
func Default() *Tables {
	t, err := defaultOnce()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads tables from path. An empty path returns Default.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading heuristics %s", path)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing heuristics %s", path)
	}
	return t, nil
}

// Parse decodes and compiles a YAML table document.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) compile() error {
	for _, list := range [][]Archetype{t.StrictArchetypes, t.Archetypes} {
		for i := range list {
			re, err := regexp.Compile(list[i].Pattern)
			if err != nil {
				return errors.Wrapf(err, "archetype %q", list[i].Name)
			}
			list[i].re = re
		}
	}
	var err error
	if t.dangerRe, err = compileOptional(t.Intents.Danger); err != nil {
		return errors.Wrap(err, "danger intent")
	}
	if t.secondaryRe, err = compileOptional(t.Intents.Secondary); err != nil {
		return errors.Wrap(err, "secondary intent")
	}
	if t.ButtonPrefixMaxRunes <= 0 {
		t.ButtonPrefixMaxRunes = 12
	}
	return nil
}

func compileOptional(p string) (*regexp.Regexp, error) {
	if p == "" {
		return nil, nil
	}
	return regexp.Compile(p)
}

// NormalizeName lowercases s and strips all whitespace.
func NormalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// IsButtonText reports whether text reads like a call to action: it equals
// a button word, or is short and starts with one.
func (t *Tables) IsButtonText(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return false
	}
	short := utf8.RuneCountInString(s) <= t.ButtonPrefixMaxRunes
	for _, w := range t.ButtonWords {
		w = strings.ToLower(w)
		if s == w {
			return true
		}
		if short && strings.HasPrefix(s, w) {
			return true
		}
	}
	return false
}

// MatchArchetype returns the name of the first archetype whose pattern
// matches hint, or "". With strict set the strict-only archetypes are
// consulted first.
func (t *Tables) MatchArchetype(hint string, strict bool) string {
	if all := t.MatchArchetypes(hint, strict); len(all) > 0 {
		return all[0]
	}
	return ""
}

// MatchArchetypes returns every matching archetype name in table order.
func (t *Tables) MatchArchetypes(hint string, strict bool) []string {
	h := NormalizeName(hint)
	if h == "" {
		return nil
	}
	var out []string
	if strict {
		for _, a := range t.StrictArchetypes {
			if a.re.MatchString(h) {
				out = append(out, a.Name)
			}
		}
	}
	for _, a := range t.Archetypes {
		if a.re.MatchString(h) {
			out = append(out, a.Name)
		}
	}
	return out
}

// IntentHint returns "danger" or "secondary" when hint carries one of the
// intent keywords, or "".
func (t *Tables) IntentHint(hint string) string {
	h := NormalizeName(hint)
	switch {
	case t.dangerRe != nil && t.dangerRe.MatchString(h):
		return "danger"
	case t.secondaryRe != nil && t.secondaryRe.MatchString(h):
		return "secondary"
	}
	return ""
}

// FontWeight resolves a numeric weight from a style name such as
// "Inter-SemiBold" or "Bold Italic".
func (t *Tables) FontWeight(styleName string) (float64, bool) {
	h := NormalizeName(styleName)
	if h == "" {
		return 0, false
	}
	for _, fw := range t.FontWeights {
		if strings.Contains(h, fw.Keyword) {
			return fw.Weight, true
		}
	}
	return 0, false
}
