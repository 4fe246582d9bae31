// Package dsmap maps the semantic tree onto design-system components or,
// under the RAW policy, onto plain elements carrying utility classes.
package dsmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
)

// Kind tells components from plain elements.
type Kind string

const (
	KindComponent Kind = "component"
	KindElement   Kind = "element"
)

// ComponentNode is one node of the mapped tree. Name is a component name
// for KindComponent and an HTML tag for KindElement.
type ComponentNode struct {
	ID       string           `json:"id"`
	Ref      *a2ui.Ref        `json:"ref,omitempty"`
	Kind     Kind             `json:"kind"`
	Name     string           `json:"name"`
	Props    Props            `json:"props,omitempty"`
	Classes  []string         `json:"classes,omitempty"`
	Children []*ComponentNode `json:"children,omitempty"`
}

// Walk visits n and its descendants in pre-order.
func Walk(n *ComponentNode, fn func(*ComponentNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Prop is one named property value.
type Prop struct {
	Key   string
	Value any
}

// Props is an insertion-ordered property list. It marshals as a JSON
// object with keys in list order.
type Props []Prop

// P builds Props from alternating keys and values.
func P(kv ...any) Props {
	out := make(Props, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Prop{Key: kv[i].(string), Value: kv[i+1]})
	}
	return out
}

// Get returns the value stored under key.
func (p Props) Get(key string) (any, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// GetString returns the value under key when it is a string.
func (p Props) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set replaces the value under key or appends it.
func (p *Props) Set(key string, v any) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = v
			return
		}
	}
	*p = append(*p, Prop{Key: key, Value: v})
}

// Without returns a copy of p without key.
func (p Props) Without(key string) Props {
	out := make(Props, 0, len(p))
	for _, kv := range p {
		if kv.Key != key {
			out = append(out, kv)
		}
	}
	return out
}

func (p Props) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "prop %q", kv.Key)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Props) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("props: expected a JSON object")
	}
	out := Props{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.Newf("props: unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return errors.Wrapf(err, "prop %q", key)
		}
		out = append(out, Prop{Key: key, Value: v})
	}
	*p = out
	return nil
}

// Meta describes a mapped envelope.
type Meta struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Policy      a2ui.Policy `json:"policy"`
	FileKey     string      `json:"fileKey,omitempty"`
}

// Root is the persisted mapped tree with every diagnostic gathered so far.
type Root struct {
	Version     string           `json:"version"`
	Meta        Meta             `json:"meta"`
	Tree        *ComponentNode   `json:"tree"`
	Diagnostics a2ui.Diagnostics `json:"diagnostics"`
}

// ErrMappingFailed matches every *MappingFailedError.
var ErrMappingFailed = errors.New("design system mapping failed")

// MappingFailedError is returned under STRICT when any diagnostic has
// error severity. It carries the full diagnostics list.
type MappingFailedError struct {
	Diagnostics a2ui.Diagnostics
}

func (e *MappingFailedError) Error() string {
	return fmt.Sprintf("%s in STRICT mode (%d errors)", ErrMappingFailed, len(e.Diagnostics.Errors()))
}

func (e *MappingFailedError) Unwrap() error { return ErrMappingFailed }
