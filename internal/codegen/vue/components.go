package vue

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed components/*.vue
var componentFS embed.FS

// ComponentSources returns the shipped component library keyed by
// component name.
func ComponentSources() map[string]string {
	entries, err := fs.ReadDir(componentFS, "components")
	if err != nil {
		panic(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := componentFS.ReadFile(path.Join("components", e.Name()))
		if err != nil {
			panic(err)
		}
		out[strings.TrimSuffix(e.Name(), ".vue")] = string(data)
	}
	return out
}

// ComponentNames returns the library component names, sorted.
func ComponentNames() []string {
	src := ComponentSources()
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
