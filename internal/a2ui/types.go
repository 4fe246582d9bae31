// Package a2ui defines the framework-agnostic semantic UI tree and converts
// raw Figma nodes into it.
package a2ui

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Version is the schema version written into every envelope.
const Version = "0.1"

// NodeType discriminates the Node variants.
type NodeType string

const (
	TypeFrame  NodeType = "frame"
	TypeText   NodeType = "text"
	TypeButton NodeType = "button"
	TypeInput  NodeType = "input"
	TypeImage  NodeType = "image"
)

// Node is one semantic UI node. Which variant fields are set depends on
// Type: Children for frames, Text for text, Label/Intent/Size for buttons,
// Placeholder for inputs and SrcRef for images.
type Node struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	Name   string   `json:"name,omitempty"`
	Ref    *Ref     `json:"ref,omitempty"`
	Layout *Layout  `json:"layout,omitempty"`
	Style  *Style   `json:"style,omitempty"`

	Children    []*Node `json:"children,omitempty"`
	Text        string  `json:"text,omitempty"`
	Label       string  `json:"label,omitempty"`
	Intent      string  `json:"intent,omitempty"`
	Size        string  `json:"size,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
	SrcRef      string  `json:"srcRef,omitempty"`
}

// Ref records where a node came from.
type Ref struct {
	FigmaNodeID    string   `json:"figmaNodeId,omitempty"`
	ComponentKey   string   `json:"componentKey,omitempty"`
	StyleSignature string   `json:"styleSignature,omitempty"`
	NamePath       []string `json:"namePath,omitempty"`
}

// Layout is the flex model extracted from auto-layout.
type Layout struct {
	Display   string     `json:"display,omitempty"`
	Direction string     `json:"direction,omitempty"`
	Justify   string     `json:"justify,omitempty"`
	Align     string     `json:"align,omitempty"`
	Gap       *float64   `json:"gap,omitempty"`
	Padding   []float64  `json:"padding,omitempty"`
	Width     *Dimension `json:"width,omitempty"`
	Height    *Dimension `json:"height,omitempty"`
}

// Sizing modes of a Dimension.
const (
	SizeFill = "fill"
	SizeHug  = "hug"
)

// Dimension is an explicit pixel size or one of the "fill" and "hug"
// modes. It marshals as a JSON number or string accordingly.
type Dimension struct {
	Px   float64
	Mode string
}

// Pixels returns a fixed pixel dimension.
func Pixels(px float64) *Dimension { return &Dimension{Px: px} }

// Fill returns a dimension that stretches to its container.
func Fill() *Dimension { return &Dimension{Mode: SizeFill} }

// Hug returns a dimension that shrinks to its content.
func Hug() *Dimension { return &Dimension{Mode: SizeHug} }

func (d *Dimension) IsFill() bool { return d != nil && d.Mode == SizeFill }
func (d *Dimension) IsHug() bool  { return d != nil && d.Mode == SizeHug }

// Fixed returns the pixel value when d is an explicit size.
func (d *Dimension) Fixed() (float64, bool) {
	if d == nil || d.Mode != "" {
		return 0, false
	}
	return d.Px, true
}

func (d Dimension) MarshalJSON() ([]byte, error) {
	if d.Mode != "" {
		return json.Marshal(d.Mode)
	}
	return json.Marshal(d.Px)
}

func (d *Dimension) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case SizeFill, SizeHug:
			*d = Dimension{Mode: s}
			return nil
		}
		px, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.Newf("a2ui: invalid dimension %q", s)
		}
		*d = Dimension{Px: px}
		return nil
	}
	var px float64
	if err := json.Unmarshal(data, &px); err != nil {
		return err
	}
	*d = Dimension{Px: px}
	return nil
}

// Style carries the visual attributes that survive normalization.
type Style struct {
	Fills        []Paint     `json:"fills,omitempty"`
	Strokes      []Paint     `json:"strokes,omitempty"`
	StrokeWeight *float64    `json:"strokeWeight,omitempty"`
	Radius       *float64    `json:"radius,omitempty"`
	Shadow       *Shadow     `json:"shadow,omitempty"`
	Typography   *Typography `json:"typography,omitempty"`
}

// Paint is a visible solid paint with its opacity folded into alpha.
type Paint struct {
	Color Color `json:"color"`
}

// Color uses 0-1 float channels.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// RGB255 returns the channels rounded onto the 0-255 scale.
func (c Color) RGB255() (r, g, b float64) {
	return math.Round(clamp01(c.R) * 255), math.Round(clamp01(c.G) * 255), math.Round(clamp01(c.B) * 255)
}

// Hex returns "#rrggbb", ignoring alpha.
func (c Color) Hex() string {
	r, g, b := c.RGB255()
	return fmt.Sprintf("#%02x%02x%02x", int(r), int(g), int(b))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Shadow describes a drop shadow.
type Shadow struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Blur   float64 `json:"blur"`
	Spread float64 `json:"spread"`
	Color  Color   `json:"color"`
}

// Typography describes text styling.
type Typography struct {
	FontFamily    string   `json:"fontFamily,omitempty"`
	FontSize      *float64 `json:"fontSize,omitempty"`
	FontWeight    *float64 `json:"fontWeight,omitempty"`
	LineHeight    *float64 `json:"lineHeight,omitempty"`
	LetterSpacing *float64 `json:"letterSpacing,omitempty"`
}

// FirstFill returns the first fill colour, if any.
func (s *Style) FirstFill() (Color, bool) {
	if s == nil || len(s.Fills) == 0 {
		return Color{}, false
	}
	return s.Fills[0].Color, true
}

// Meta describes an envelope.
type Meta struct {
	GeneratedAt time.Time `json:"generatedAt"`
	FileKey     string    `json:"fileKey,omitempty"`
}

// Root is the persisted semantic tree with the diagnostics gathered while
// building it.
type Root struct {
	Version     string      `json:"version"`
	Meta        Meta        `json:"meta"`
	Tree        *Node       `json:"tree"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// NewRoot wraps a normalized tree.
func NewRoot(tree *Node, diags Diagnostics, fileKey string, now time.Time) *Root {
	if diags == nil {
		diags = Diagnostics{}
	}
	return &Root{
		Version:     Version,
		Meta:        Meta{GeneratedAt: now.UTC(), FileKey: fileKey},
		Tree:        tree,
		Diagnostics: diags,
	}
}

// Walk visits n and its descendants in pre-order.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// FirstText returns the first non-empty text or button label found by a
// pre-order search of n.
func FirstText(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case TypeText:
		if n.Text != "" {
			return n.Text
		}
	case TypeButton:
		if n.Label != "" {
			return n.Label
		}
	}
	for _, c := range n.Children {
		if t := FirstText(c); t != "" {
			return t
		}
	}
	return ""
}
