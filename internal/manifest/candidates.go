package manifest

import (
	"slices"
	"sort"
	"strings"

	"github.com/ghkdsigm/figma-auto/internal/dsmap"
)

// RawCandidates scans a RAW tree for plain button and input elements and
// label+input groupings whose classes suggest a library component. Each
// distinct (tag, class set) is one pattern; the top patterns by confidence
// then occurrence count are returned.
func RawCandidates(tree *dsmap.ComponentNode) []RawCandidate {
	var order []string
	hits := map[string]*RawCandidate{}
	count := func(key string, c RawCandidate) {
		if prev, ok := hits[key]; ok {
			prev.Occurrences++
			return
		}
		c.Occurrences = 1
		hits[key] = &c
		order = append(order, key)
	}

	dsmap.Walk(tree, func(n *dsmap.ComponentNode) {
		if n.Kind != dsmap.KindElement {
			return
		}
		classes := nonEmpty(n.Classes)
		if n.Name == "button" || n.Name == "input" {
			if c, ok := classifyControl(n.Name, classes); ok {
				count(signature(n.Name, classes), c)
			}
		}
		if c, ok := classifyFormField(n, classes); ok {
			count(signature("FormField@"+n.Name, classes), c)
		}
	})

	out := make([]RawCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, *hits[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return score(out[i]) > score(out[j]) })
	if len(out) > maxRawCandidates {
		out = out[:maxRawCandidates]
	}
	return out
}

func score(c RawCandidate) int {
	s := c.Occurrences
	if c.Confidence == ConfidenceHigh {
		s += 1_000_000
	}
	return s
}

func signature(tag string, classes []string) string {
	sorted := slices.Clone(classes)
	sort.Strings(sorted)
	return tag + "::" + strings.Join(sorted, " ")
}

type classSet []string

func (cs classSet) any(fn func(string) bool) bool { return slices.ContainsFunc(cs, fn) }

func (cs classSet) rounded() bool {
	return cs.any(func(c string) bool {
		return c == "rounded" || strings.HasPrefix(c, "rounded-") || strings.HasPrefix(c, "rounded[")
	})
}

func (cs classSet) background() bool {
	return cs.any(func(c string) bool {
		return c == "bg" || strings.HasPrefix(c, "bg-") || strings.HasPrefix(c, "bg[")
	})
}

func (cs classSet) padding() bool {
	return cs.any(func(c string) bool {
		return strings.HasPrefix(c, "px-") || strings.HasPrefix(c, "py-") ||
			strings.HasPrefix(c, "p-") || strings.HasPrefix(c, "p[")
	})
}

func (cs classSet) border() bool {
	return cs.any(func(c string) bool {
		return c == "border" || strings.HasPrefix(c, "border-") || strings.HasPrefix(c, "border[")
	})
}

func (cs classSet) focusRing() bool {
	return cs.any(func(c string) bool { return strings.Contains(c, "focus:ring") })
}

func classifyControl(tag string, classes []string) (RawCandidate, bool) {
	cs := classSet(classes)
	c := RawCandidate{ExampleTag: tag, ExampleClasses: classes}
	switch tag {
	case "button":
		c.Candidate = "BaseButton"
		switch {
		case cs.rounded() && cs.background() && cs.padding():
			c.Confidence = ConfidenceHigh
			c.Reason = "button with background, padding and rounded corners"
		case cs.rounded() && (cs.background() || cs.border()):
			c.Confidence = ConfidenceMedium
			c.Reason = "button with rounded corners and a background or border"
		default:
			return RawCandidate{}, false
		}
	case "input":
		c.Candidate = "BaseInput"
		switch {
		case cs.rounded() && cs.border() && cs.focusRing():
			c.Confidence = ConfidenceHigh
			c.Reason = "input with border, rounded corners and a focus ring"
		case cs.rounded() && cs.border():
			c.Confidence = ConfidenceMedium
			c.Reason = "input with border and rounded corners"
		default:
			return RawCandidate{}, false
		}
	default:
		return RawCandidate{}, false
	}
	return c, true
}

// classifyFormField matches a small container holding exactly one text
// label and at least one input.
func classifyFormField(n *dsmap.ComponentNode, classes []string) (RawCandidate, bool) {
	switch n.Name {
	case "div", "form", "section":
	default:
		return RawCandidate{}, false
	}
	if len(n.Children) < 2 || len(n.Children) > 6 {
		return RawCandidate{}, false
	}
	hasInput, labels := false, 0
	for _, c := range n.Children {
		if c.Kind != dsmap.KindElement {
			continue
		}
		if c.Name == "input" {
			hasInput = true
		}
		if text, ok := c.Props.GetString("text"); ok && strings.TrimSpace(text) != "" {
			labels++
		}
	}
	if !hasInput || labels != 1 {
		return RawCandidate{}, false
	}

	cs := classSet(classes)
	layout := (slices.Contains(classes, "flex") && cs.any(func(c string) bool { return strings.Contains(c, "flex-col") })) ||
		cs.any(func(c string) bool { return strings.HasPrefix(c, "gap-") || strings.HasPrefix(c, "gap[") })

	c := RawCandidate{Candidate: "FormField", ExampleTag: n.Name, ExampleClasses: classes}
	if layout {
		c.Confidence = ConfidenceHigh
		c.Reason = "container with one text label, an input and a column or gap layout"
	} else {
		c.Confidence = ConfidenceMedium
		c.Reason = "container with one text label and an input"
	}
	return c, true
}

func nonEmpty(classes []string) []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
