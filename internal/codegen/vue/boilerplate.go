package vue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Target selects the project flavour.
type Target string

const (
	TargetNuxt Target = "nuxt"
	TargetVue  Target = "vue"
)

// ParseTarget parses s case-insensitively; empty selects nuxt.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TargetNuxt, nil
	case TargetNuxt, TargetVue:
		return t, nil
	}
	return "", errors.WithHint(errors.Newf("unknown target %q", s), "use nuxt or vue")
}

func (t Target) String() string { return string(t) }

// screen is everything the boilerplate needs from a generation run.
type screen struct {
	markup      string
	raw         bool
	diagnostics string
	components  map[string]string
}

const tailwindCSS = `@tailwind base;
@tailwind components;
@tailwind utilities;

:root{
  --ds-primary: #2563eb;
  --ds-danger: #dc2626;
  --ds-fg: #0f172a;
  --ds-muted: #475569;
  --ds-surface: #ffffff;
  --ds-border: #e2e8f0;
}
`

const postcssConfig = `export default {
  plugins: {
    tailwindcss: {},
    autoprefixer: {}
  }
};
`

const diagnosticsPanel = `      <details class="mt-10">
        <summary class="cursor-pointer text-sm text-slate-600">Mapping diagnostics</summary>
        <pre class="mt-3 text-xs whitespace-pre-wrap text-slate-700 bg-slate-50 border border-slate-200 rounded-lg p-4">{{ diagnostics }}</pre>
      </details>
`

// wrapped places body inside the page shell with the diagnostics panel.
func wrapped(body, diagnosticsImport string) string {
	return `<template>
  <div class="min-h-screen bg-white text-slate-900">
    <main class="max-w-4xl mx-auto p-6">
      ` + body + `
` + diagnosticsPanel + `    </main>
  </div>
</template>

<script setup lang="ts">
import diagnostics from "` + diagnosticsImport + `";
</script>
`
}

func nuxtFiles(s screen) map[string]string {
	app := "<template>\n  <GeneratedScreen />\n</template>\n"
	if !s.raw {
		app = wrapped("<GeneratedScreen />", "~/generated/diagnostics.json")
	}

	files := map[string]string{
		"package.json": `{
  "name": "a2ui-generated-app",
  "private": true,
  "type": "module",
  "scripts": {
    "dev": "nuxt dev",
    "build": "nuxt build",
    "generate": "nuxt generate",
    "preview": "nuxt preview"
  },
  "dependencies": {
    "nuxt": "^3.11.1"
  },
  "devDependencies": {
    "tailwindcss": "^3.4.0",
    "postcss": "^8.4.0",
    "autoprefixer": "^10.4.0"
  }
}`,
		"nuxt.config.ts": `export default defineNuxtConfig({
  css: ["~/assets/tailwind.css"],
  postcss: {
    plugins: {
      tailwindcss: {},
      autoprefixer: {}
    }
  }
});
`,
		"tailwind.config.js": `export default {
  content: ["./app.vue", "./components/**/*.{vue,js,ts}", "./pages/**/*.vue"],
  theme: { extend: {} },
  plugins: []
};
`,
		"postcss.config.js":              postcssConfig,
		"assets/tailwind.css":            tailwindCSS,
		"app.vue":                        app,
		"components/GeneratedScreen.vue": "<template>\n  " + s.markup + "\n</template>\n",
		"generated/diagnostics.json":     s.diagnostics,
	}
	for name, src := range s.components {
		files["components/"+name+".vue"] = src
	}
	return files
}

func viteFiles(s screen) map[string]string {
	app := "<template>\n  " + s.markup + "\n</template>\n"
	if !s.raw {
		app = wrapped(s.markup, "./generated/diagnostics.json")
	}

	files := map[string]string{
		"package.json": `{
  "name": "a2ui-vue-app",
  "private": true,
  "type": "module",
  "scripts": {
    "dev": "vite",
    "build": "vite build",
    "preview": "vite preview"
  },
  "dependencies": {
    "vue": "^3.4.0"
  },
  "devDependencies": {
    "@vitejs/plugin-vue": "^5.2.0",
    "vite": "^5.4.0",
    "typescript": "^5.6.2",
    "tailwindcss": "^3.4.0",
    "postcss": "^8.4.0",
    "autoprefixer": "^10.4.0"
  }
}`,
		"vite.config.ts": `import { defineConfig } from "vite";
import vue from "@vitejs/plugin-vue";

export default defineConfig({
  plugins: [vue()]
});
`,
		"index.html": `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>a2ui</title>
  </head>
  <body>
    <div id="app"></div>
    <script type="module" src="/src/main.ts"></script>
  </body>
</html>
`,
		"tailwind.config.js": `export default {
  content: ["./index.html", "./src/**/*.{vue,js,ts}"],
  theme: { extend: {} },
  plugins: []
};
`,
		"postcss.config.js":              postcssConfig,
		"src/styles/tailwind.css":        tailwindCSS,
		"src/main.ts":                    mainTS(s.components),
		"src/App.vue":                    app,
		"src/generated/diagnostics.json": s.diagnostics,
		"public/assets/.gitkeep":         "",
	}
	for name, src := range s.components {
		files["src/components/"+name+".vue"] = src
	}
	return files
}

// mainTS registers every library component globally so the generated
// template can use them without imports.
func mainTS(components map[string]string) string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("import { createApp } from \"vue\";\nimport App from \"./App.vue\";\nimport \"./styles/tailwind.css\";\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "import %s from \"./components/%s.vue\";\n", name, name)
	}
	b.WriteString("\nconst app = createApp(App);\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "app.component(%q, %s);\n", name, name)
	}
	b.WriteString("\napp.mount(\"#app\");\n")
	return b.String()
}

func readme(t Target) string {
	flavour := "nuxt"
	if t == TargetVue {
		flavour = "vue (vite)"
	}
	return `# A2UI Generated Output

This project was generated from a Figma design as a ` + flavour + ` app.

- The screen markup lives in ` + "`" + screenFile(t) + "`" + `.
- ` + "`components/`" + ` holds the shared component library used by the screen.
- ` + "`manifest.json`" + ` lists the components, their props and refactoring hints.
- Mapping diagnostics are written to ` + "`" + diagnosticsFile(t) + "`" + `.

## Refactoring prompt

Paste the following into an AI-assisted editor to clean the output up:

` + "```" + `
You are a senior frontend developer. Refactor the sources of this project.

Goals:
1) Format every Vue file, starting with the screen template.
2) Keep the generated design: spacing, radius, colour, typography and
   especially the explicit width/height values.
3) Replace plain markup with the components in components/ wherever the
   Figma names make the intent clear (buttons, selects, inputs, radios,
   carousels, flags, toggles, switches, cards, dropdowns, dialogs,
   checkboxes, popups, tabs, hamburgers, calendars).
4) Add responsive behaviour with Tailwind breakpoints without breaking
   the base layout.

Constraints:
- Behaviour stays the same.
- Goal 2 wins over everything else.
` + "```" + `

## Running

- Nuxt: ` + "`npm install`" + ` then ` + "`npm run dev`" + `
- Vue (Vite): ` + "`npm install`" + ` then ` + "`npm run dev`" + `
`
}

const readmeRefactor = `Do not change the UI.

Replace markup with the shared components in components/ when possible
(BaseButton, BaseInput, BaseSelect, BaseCheckbox, BaseRadio, BaseSwitch, ...).
When unsure, keep the div.

Format every Vue file.

Keep pixels, spacing and alignment exactly as generated.

Import the components listed in manifest.json refactorGuidance.preferComponents
and use them wherever the replacement is safe.

Only replace div/span structure with shared components.

When a replacement is ambiguous keep the original div and leave a TODO.

Styling rules when replacing:
- keep existing class/style attributes, wrapping in a div if needed
- move to props only what props can express, keep the rest as classes

Fold wrapper divs that only style an input component (BaseInput, BaseSelect,
CalendarInput, BaseTextarea) into the component itself.

Add a script setup block to the screen and wire every component: inputs
with v-model, checks and toggles with v-model:checked, buttons with event
handlers. Default values are the values visible on screen.
`

func diagnosticsFile(t Target) string {
	if t == TargetVue {
		return "src/generated/diagnostics.json"
	}
	return "generated/diagnostics.json"
}

func screenFile(t Target) string {
	if t == TargetVue {
		return "src/App.vue"
	}
	return "components/GeneratedScreen.vue"
}
