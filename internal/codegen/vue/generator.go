// Package vue renders a mapped component tree into a Vue 3 project, either
// a Vite app or a Nuxt app, together with the shared component library and
// a manifest for refactor tooling.
package vue

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
	"github.com/ghkdsigm/figma-auto/internal/assets"
	"github.com/ghkdsigm/figma-auto/internal/dsmap"
	"github.com/ghkdsigm/figma-auto/internal/manifest"
)

// AssetResolver rewrites image sources before rendering.
// *assets.Resolver implements it.
type AssetResolver interface {
	Resolve(ctx context.Context, tree *dsmap.ComponentNode, fileKey string) (assets.Stats, error)
	Localize(ctx context.Context, tree *dsmap.ComponentNode, fileKey, projectDir string) (assets.Stats, error)
}

// Options configures one Generate call.
type Options struct {
	Target Target
	// OutDir is the project directory. An existing directory is replaced.
	OutDir string
	// Zip also writes OutDir + ".zip".
	Zip bool
	// FileKey enables asset resolution.
	FileKey string
	// DownloadAssets copies images into the project instead of linking them.
	DownloadAssets bool
}

// Result describes a generated project.
type Result struct {
	Dir    string
	Zip    string
	Files  []string
	Assets assets.Stats
}

// Generator produces Vue projects from mapped trees.
type Generator struct {
	DesignSystem *dsmap.DesignSystem
	Assets       AssetResolver
	Logger       *zap.Logger
}

// NewGenerator returns a Generator. ds only feeds the manifest and may be
// nil; without a resolver image placeholders are left as they are.
func NewGenerator(ds *dsmap.DesignSystem, res AssetResolver, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{DesignSystem: ds, Assets: res, Logger: logger.Named("codegen")}
}

// Files renders every project file for root, keyed by slash-separated
// relative path. It does not touch the filesystem and is deterministic.
func (g *Generator) Files(root *dsmap.Root, target Target) (map[string]string, error) {
	diags := root.Diagnostics
	if diags == nil {
		diags = a2ui.Diagnostics{}
	}
	diagJSON, err := json.MarshalIndent(diags, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding diagnostics")
	}

	components := ComponentSources()
	s := screen{
		markup:      Render(root.Tree),
		raw:         root.Meta.Policy == a2ui.PolicyRaw,
		diagnostics: string(diagJSON),
		components:  components,
	}

	var files map[string]string
	switch target {
	case TargetVue:
		files = viteFiles(s)
	case TargetNuxt, "":
		target = TargetNuxt
		files = nuxtFiles(s)
	default:
		return nil, errors.Newf("unknown target %q", target)
	}

	m, err := manifest.Build(root, manifest.Options{
		Target:       target.String(),
		DesignSystem: g.DesignSystem,
		Components:   components,
	}).JSON()
	if err != nil {
		return nil, errors.Wrap(err, "encoding manifest")
	}
	files["manifest.json"] = string(m)
	files["README.md"] = readme(target)
	files["README_refactor.md"] = readmeRefactor
	return files, nil
}

// Generate resolves image assets, renders the project into a temporary
// sibling of opts.OutDir and renames it into place. A failed or cancelled
// run leaves no partial output. Asset resolution rewrites image sources in
// root.Tree.
func (g *Generator) Generate(ctx context.Context, root *dsmap.Root, opts Options) (*Result, error) {
	if opts.OutDir == "" {
		return nil, errors.New("codegen: output directory is required")
	}
	if root == nil || root.Tree == nil {
		return nil, errors.New("codegen: nothing to render")
	}
	out, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolving output directory")
	}
	parent := filepath.Dir(out)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating directory %s", parent)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(out)+"-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(tmp)
		}
	}()

	res := &Result{Dir: out}
	if g.Assets != nil && opts.FileKey != "" {
		if opts.DownloadAssets {
			res.Assets, err = g.Assets.Localize(ctx, root.Tree, opts.FileKey, tmp)
		} else {
			res.Assets, err = g.Assets.Resolve(ctx, root.Tree, opts.FileKey)
		}
		if err != nil {
			return nil, errors.Wrap(err, "resolving assets")
		}
	}

	files, err := g.Files(root, opts.Target)
	if err != nil {
		return nil, err
	}
	for rel := range files {
		res.Files = append(res.Files, rel)
	}
	sort.Strings(res.Files)

	for _, rel := range res.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeFile(filepath.Join(tmp, filepath.FromSlash(rel)), files[rel]); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Chmod(tmp, 0755); err != nil {
		return nil, errors.Wrap(err, "setting project permissions")
	}
	if err := replaceDir(tmp, out); err != nil {
		return nil, err
	}
	committed = true

	g.Logger.Info("project written",
		zap.String("dir", out),
		zap.String("target", string(opts.Target)),
		zap.Int("files", len(res.Files)))

	if opts.Zip {
		res.Zip = out + ".zip"
		if err := writeZip(out, res.Zip); err != nil {
			return res, err
		}
		g.Logger.Info("archive written", zap.String("path", res.Zip))
	}
	return res, nil
}

// rename is swapped in tests.
var rename = os.Rename

// replaceDir moves src to dst, swapping out any existing dst.
func replaceDir(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		old := src + ".old"
		if err := rename(dst, old); err != nil {
			return errors.Wrapf(err, "moving aside %s", dst)
		}
		if err := rename(src, dst); err != nil {
			err = errors.Wrapf(err, "renaming into %s", dst)
			if rerr := rename(old, dst); rerr != nil {
				return errors.WithHintf(errors.CombineErrors(err, errors.Wrapf(rerr, "restoring %s", dst)),
					"the previous project was left at %s", old)
			}
			return err
		}
		return os.RemoveAll(old)
	}
	if err := rename(src, dst); err != nil {
		return errors.Wrapf(err, "renaming into %s", dst)
	}
	return nil
}

func writeFile(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating directory %s", dir)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// writeZip archives dir with paths relative to it. Entries are sorted so
// the archive listing is stable.
func writeZip(dir, dest string) (err error) {
	var paths []string
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "listing %s", dir)
	}
	sort.Strings(paths)

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating %s", tmp)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(f)
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if err := addToZip(zw, p, filepath.ToSlash(rel)); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "finishing archive")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing archive")
	}
	return os.Rename(tmp, dest)
}

func addToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return errors.Wrapf(err, "adding %s", name)
	}
	_, err = io.Copy(w, src)
	return err
}
