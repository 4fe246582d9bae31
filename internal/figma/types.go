// Package figma talks to the Figma REST API and models the raw node
// documents it returns. Nothing outside this package and the normalizer
// should depend on the raw shape.
package figma

// Node types as reported by the REST API.
const (
	TypeDocument     = "DOCUMENT"
	TypeCanvas       = "CANVAS"
	TypeFrame        = "FRAME"
	TypeGroup        = "GROUP"
	TypeSection      = "SECTION"
	TypeComponent    = "COMPONENT"
	TypeComponentSet = "COMPONENT_SET"
	TypeInstance     = "INSTANCE"
	TypeText         = "TEXT"
	TypeVector       = "VECTOR"
	TypeStar         = "STAR"
	TypeEllipse      = "ELLIPSE"
	TypeRectangle    = "RECTANGLE"
	TypeLine         = "LINE"
)

// Paint types.
const (
	PaintSolid = "SOLID"
	PaintImage = "IMAGE"
)

// InstanceSeparator separates the owning instance from the part id in
// ids of nodes that live inside a component instance ("I12:34;56:78").
const InstanceSeparator = ";"

// RawNode mirrors a node of the REST document tree.
//
// Children is deliberately not omitempty: a missing children key (nil) is a
// leaf, while a present but empty array is a container whose subtree was
// cut off by the depth limit.
type RawNode struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Visible    *bool  `json:"visible,omitempty"`
	Characters string `json:"characters,omitempty"`

	Width               *float64 `json:"width,omitempty"`
	Height              *float64 `json:"height,omitempty"`
	Size                *Vector  `json:"size,omitempty"`
	AbsoluteBoundingBox *Rect    `json:"absoluteBoundingBox,omitempty"`

	LayoutMode             string   `json:"layoutMode,omitempty"`
	PrimaryAxisAlignItems  string   `json:"primaryAxisAlignItems,omitempty"`
	CounterAxisAlignItems  string   `json:"counterAxisAlignItems,omitempty"`
	ItemSpacing            *float64 `json:"itemSpacing,omitempty"`
	PaddingLeft            float64  `json:"paddingLeft,omitempty"`
	PaddingRight           float64  `json:"paddingRight,omitempty"`
	PaddingTop             float64  `json:"paddingTop,omitempty"`
	PaddingBottom          float64  `json:"paddingBottom,omitempty"`
	LayoutSizingHorizontal string   `json:"layoutSizingHorizontal,omitempty"`
	LayoutSizingVertical   string   `json:"layoutSizingVertical,omitempty"`
	LayoutAlign            string   `json:"layoutAlign,omitempty"`
	LayoutGrow             float64  `json:"layoutGrow,omitempty"`

	Fills        []Paint    `json:"fills,omitempty"`
	Strokes      []Paint    `json:"strokes,omitempty"`
	StrokeWeight *float64   `json:"strokeWeight,omitempty"`
	CornerRadius *float64   `json:"cornerRadius,omitempty"`
	Effects      []Effect   `json:"effects,omitempty"`
	Style        *TypeStyle `json:"style,omitempty"`

	ComponentID string `json:"componentId,omitempty"`

	Children []*RawNode `json:"children"`
}

// Paint is a fill or stroke entry.
type Paint struct {
	Type     string   `json:"type"`
	Visible  *bool    `json:"visible,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Color    *Color   `json:"color,omitempty"`
	ImageRef string   `json:"imageRef,omitempty"`
}

// Color uses the API's 0-1 float channels.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Effect is a shadow or blur.
type Effect struct {
	Type    string  `json:"type"`
	Visible *bool   `json:"visible,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
	Spread  float64 `json:"spread,omitempty"`
	Color   *Color  `json:"color,omitempty"`
	Offset  *Vector `json:"offset,omitempty"`
}

// TypeStyle holds the typography of TEXT nodes.
type TypeStyle struct {
	FontFamily         string   `json:"fontFamily,omitempty"`
	FontPostScriptName string   `json:"fontPostScriptName,omitempty"`
	FontStyle          string   `json:"fontStyle,omitempty"`
	FontWeight         *float64 `json:"fontWeight,omitempty"`
	FontSize           *float64 `json:"fontSize,omitempty"`
	LineHeightPx       *float64 `json:"lineHeightPx,omitempty"`
	LetterSpacing      *float64 `json:"letterSpacing,omitempty"`
}

// Vector is a 2D point or size.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an absolute bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsVisible reports whether the node is rendered. Absent means visible.
func (n *RawNode) IsVisible() bool {
	return n.Visible == nil || *n.Visible
}

// IsVisible reports whether the paint is rendered. Absent means visible.
func (p Paint) IsVisible() bool {
	return p.Visible == nil || *p.Visible
}

// IsVisible reports whether the effect is rendered. Absent means visible.
func (e Effect) IsVisible() bool {
	return e.Visible == nil || *e.Visible
}

// IsContainer reports whether the type can hold a subtree that the API may
// have truncated.
func IsContainer(nodeType string) bool {
	switch nodeType {
	case TypeFrame, TypeGroup, TypeInstance, TypeComponent, TypeComponentSet:
		return true
	}
	return false
}

// IsTruncated reports whether n is a container whose children arrived as an
// empty array.
func (n *RawNode) IsTruncated() bool {
	return IsContainer(n.Type) && n.Children != nil && len(n.Children) == 0
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(n *RawNode, fn func(*RawNode) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Clone returns a deep copy of n.
func (n *RawNode) Clone() *RawNode {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Children != nil {
		cp.Children = make([]*RawNode, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}
