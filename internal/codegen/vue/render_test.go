package vue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghkdsigm/figma-auto/internal/dsmap"
)

func comp(name string, props dsmap.Props, children ...*dsmap.ComponentNode) *dsmap.ComponentNode {
	return &dsmap.ComponentNode{Kind: dsmap.KindComponent, Name: name, Props: props, Children: children}
}

func elem(name string, classes []string, props dsmap.Props, children ...*dsmap.ComponentNode) *dsmap.ComponentNode {
	return &dsmap.ComponentNode{Kind: dsmap.KindElement, Name: name, Classes: classes, Props: props, Children: children}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		node *dsmap.ComponentNode
		want string
	}{
		{
			name: "text element",
			node: elem("span", []string{"text-[14px]", ""}, dsmap.P("text", "a < b & c")),
			want: `<span class="text-[14px]">a &lt; b &amp; c</span>`,
		},
		{
			name: "text element keeps other props",
			node: elem("a", nil, dsmap.P("href", "/x?a=1&b=2", "text", "go")),
			want: `<a href="/x?a=1&amp;b=2">go</a>`,
		},
		{
			name: "img",
			node: elem("img", []string{"object-cover"}, dsmap.P("alt", `say "hi"`, "src", "/a.png")),
			want: `<img class="object-cover" alt="say &quot;hi&quot;" src="/a.png" />`,
		},
		{
			name: "button label becomes body",
			node: comp("BaseButton", dsmap.P("intent", "primary", "size", "md", "label", "Save <now>")),
			want: `<BaseButton intent="primary" size="md">Save &lt;now&gt;</BaseButton>`,
		},
		{
			name: "typography",
			node: comp("Typography", dsmap.P("variant", "h1", "text", "Title", "colorToken", "fg")),
			want: `<Typography variant="h1" color-token="fg">Title</Typography>`,
		},
		{
			name: "bound scalars",
			node: comp("BaseCheckbox", dsmap.P("label", "Agree", "checked", false, "size", "sm")),
			want: `<BaseCheckbox :checked="false" size="sm">Agree</BaseCheckbox>`,
		},
		{
			name: "numbers",
			node: comp("RangeSlider", dsmap.P("min", 0, "max", 100.0, "value", 12.5)),
			want: `<RangeSlider :min="0" :max="100" :value="12.5" />`,
		},
		{
			name: "json props",
			node: comp("Tabs", dsmap.P("modelValue", "", "tabs", []any{map[string]any{"label": "A&B"}})),
			want: `<Tabs model-value="" :tabs='[{&quot;label&quot;:&quot;A&amp;B&quot;}]'></Tabs>`,
		},
		{
			name: "nil props are dropped",
			node: comp("BaseInput", dsmap.P("placeholder", nil)),
			want: `<BaseInput />`,
		},
		{
			name: "loading without label",
			node: comp("Loading", dsmap.P("size", "md")),
			want: `<Loading size="md"></Loading>`,
		},
		{
			name: "flag",
			node: comp("Flag", dsmap.P("text", "NEW", "intent", "secondary")),
			want: `<Flag intent="secondary">NEW</Flag>`,
		},
		{
			name: "select children inline",
			node: comp("BaseSelect", dsmap.P("placeholder", "Pick"), elem("span", nil, dsmap.P("text", "a")), elem("span", nil, dsmap.P("text", "b"))),
			want: "<BaseSelect placeholder=\"Pick\"><span>a</span>\n<span>b</span></BaseSelect>",
		},
		{
			name: "card title after props",
			node: comp("ThumbnailCard", dsmap.P("title", "Card", "size", "lg"), elem("span", nil, dsmap.P("text", "x"))),
			want: "<ThumbnailCard size=\"lg\" title=\"Card\">\n<span>x</span>\n</ThumbnailCard>",
		},
		{
			name: "card without title",
			node: comp("ThumbnailCard", nil),
			want: `<ThumbnailCard title=""></ThumbnailCard>`,
		},
		{
			name: "popup default title",
			node: comp("Popup", dsmap.P("title", nil)),
			want: `<Popup title="Popup"></Popup>`,
		},
		{
			name: "alert dialog",
			node: comp("AlertDialog", dsmap.P("message", `"Done"`, "open", true)),
			want: `<AlertDialog :open="true" title="알림" message="&quot;Done&quot;" />`,
		},
		{
			name: "unsafe box",
			node: comp("UnsafeBox", dsmap.P("originalType", "VIDEO", "debugName", "Clip")),
			want: `<UnsafeBox original-type="VIDEO" debug-name="Clip"></UnsafeBox>`,
		},
		{
			name: "nested elements",
			node: elem("div", []string{"flex", "gap-2"}, nil,
				elem("div", nil, nil, comp("HamburgerButton", nil)),
				elem("button", []string{"rounded"}, nil, elem("span", nil, dsmap.P("text", "Go")))),
			want: "<div class=\"flex gap-2\">\n<div>\n<HamburgerButton />\n</div>\n<button class=\"rounded\">\n<span>Go</span>\n</button>\n</div>",
		},
		{
			name: "element with text and children renders children",
			node: elem("p", nil, dsmap.P("text", "ignored"), elem("b", nil, dsmap.P("text", "x"))),
			want: "<p text=\"ignored\">\n<b>x</b>\n</p>",
		},
		{
			name: "class attribute escaping",
			node: elem("div", []string{`font-["Pretendard"]`}, nil),
			want: `<div class="font-[&quot;Pretendard&quot;]"></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.node))
		})
	}
}

func TestRenderNil(t *testing.T) {
	assert.Equal(t, "", Render(nil))
}

func TestKebab(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"label", "label"},
		{"colorToken", "color-token"},
		{"modelValue", "model-value"},
		{"h1Size", "h1-size"},
		{"URL", "url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, kebab(tt.input), tt.input)
	}
}
