package vue

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ghkdsigm/figma-auto/internal/dsmap"
)

// Components whose label-like prop becomes the element body.
var innerTextProp = map[string]string{
	"BaseButton":   "label",
	"BaseCheckbox": "label",
	"BaseRadio":    "label",
	"BaseSwitch":   "label",
	"ToggleButton": "label",
	"Loading":      "label",
	"Typography":   "text",
	"Flag":         "text",
}

var selfClosing = map[string]bool{
	"img":             true,
	"BaseInput":       true,
	"BaseTextarea":    true,
	"HamburgerButton": true,
	"CalendarInput":   true,
	"RangeSlider":     true,
}

// Slotted components render a title attribute after the other props.
var titleDefault = map[string]string{
	"ThumbnailCard": "",
	"Popup":         "Popup",
}

// Render returns the template markup for n. Output depends only on the
// tree, so equal trees render byte-identical markup.
func Render(n *dsmap.ComponentNode) string {
	var b strings.Builder
	render(&b, n)
	return b.String()
}

func render(b *strings.Builder, n *dsmap.ComponentNode) {
	if n == nil {
		return
	}
	tag := n.Name
	cls := renderClasses(n.Classes)

	if n.Kind == dsmap.KindElement && len(n.Children) == 0 {
		if text, ok := n.Props.GetString("text"); ok {
			b.WriteString("<" + tag + cls + renderProps(n.Props.Without("text")) + ">")
			b.WriteString(escapeText(text))
			b.WriteString("</" + tag + ">")
			return
		}
	}

	if selfClosing[tag] {
		b.WriteString("<" + tag + cls + renderProps(n.Props) + " />")
		return
	}

	if key, ok := innerTextProp[tag]; ok {
		text := propText(n.Props, key, "")
		b.WriteString("<" + tag + cls + renderProps(n.Props.Without(key)) + ">")
		b.WriteString(escapeText(text))
		b.WriteString("</" + tag + ">")
		return
	}

	switch tag {
	case "BaseSelect":
		b.WriteString("<" + tag + cls + renderProps(n.Props) + ">")
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte('\n')
			}
			render(b, c)
		}
		b.WriteString("</" + tag + ">")
		return

	case "AlertDialog":
		title := propText(n.Props, "title", "알림")
		message := propText(n.Props, "message", "")
		rest := n.Props.Without("title").Without("message")
		b.WriteString("<AlertDialog" + cls + renderProps(rest))
		b.WriteString(` title="` + escapeAttr(title) + `" message="` + escapeAttr(message) + `" />`)
		return
	}

	if def, ok := titleDefault[tag]; ok {
		title := propText(n.Props, "title", def)
		b.WriteString("<" + tag + cls + renderProps(n.Props.Without("title")))
		b.WriteString(` title="` + escapeAttr(title) + `">`)
	} else {
		b.WriteString("<" + tag + cls + renderProps(n.Props) + ">")
	}
	renderChildren(b, n.Children)
	b.WriteString("</" + tag + ">")
}

// renderChildren writes children one per line, surrounded by newlines.
func renderChildren(b *strings.Builder, children []*dsmap.ComponentNode) {
	if len(children) == 0 {
		return
	}
	b.WriteByte('\n')
	for i, c := range children {
		if i > 0 {
			b.WriteByte('\n')
		}
		render(b, c)
	}
	b.WriteByte('\n')
}

// propText reads key as display text. Absent or null values yield def.
func propText(p dsmap.Props, key, def string) string {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := scalar(v); ok {
		return s
	}
	return def
}

func renderProps(p dsmap.Props) string {
	var out []string
	for _, kv := range p {
		if kv.Value == nil {
			continue
		}
		attr := kebab(kv.Key)
		if s, ok := kv.Value.(string); ok {
			out = append(out, attr+`="`+escapeAttr(s)+`"`)
			continue
		}
		if s, ok := scalar(kv.Value); ok {
			out = append(out, ":"+attr+`="`+s+`"`)
			continue
		}
		out = append(out, ":"+attr+`='`+escapeAttr(jsonText(kv.Value))+`'`)
	}
	if len(out) == 0 {
		return ""
	}
	return " " + strings.Join(out, " ")
}

// scalar formats numbers and booleans the way they appear in bindings.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case json.Number:
		return x.String(), true
	}
	return "", false
}

func jsonText(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func renderClasses(classes []string) string {
	var list []string
	for _, c := range classes {
		if c != "" {
			list = append(list, c)
		}
	}
	if len(list) == 0 {
		return ""
	}
	return ` class="` + escapeAttr(strings.Join(list, " ")) + `"`
}

var (
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;")
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

func escapeAttr(s string) string { return attrEscaper.Replace(s) }

func escapeText(s string) string { return textEscaper.Replace(s) }

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// kebab converts a camelCase prop name to its attribute form.
func kebab(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "$1-$2"))
}
