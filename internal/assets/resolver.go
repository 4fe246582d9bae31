// Package assets replaces image placeholders in a mapped tree with
// rendered Figma image URLs, optionally downloading them into the
// generated project.
package assets

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ghkdsigm/figma-auto/internal/dsmap"
)

// Defaults for resolution and download.
const (
	DefaultBatchSize        = 50
	DefaultConcurrency      = 5
	DefaultDownloadTimeout  = 45 * time.Second
	DefaultMaxDownloadBytes = 10 << 20

	// AssetDir is where Localize stores images, relative to the project.
	AssetDir = "public/assets/figma"
	// AssetURLPrefix is the public path of AssetDir.
	AssetURLPrefix = "/assets/figma/"
)

var ErrAssetTooLarge = errors.New("assets: image exceeds size limit")

// ImageRenderer rasterizes nodes and returns their URLs keyed by node id.
type ImageRenderer interface {
	GetRenderedImages(ctx context.Context, fileKey string, ids []string, format string, scale float64) (map[string]string, error)
}

// Stats summarises one resolution.
type Stats struct {
	Requested      int `json:"requested"`
	Resolved       int `json:"resolved"`
	Rewritten      int `json:"rewritten"`
	FailedChunks   int `json:"failedChunks"`
	Downloaded     int `json:"downloaded,omitempty"`
	DownloadFailed int `json:"downloadFailed,omitempty"`
}

// Resolver resolves image placeholders.
type Resolver struct {
	Renderer   ImageRenderer
	HTTPClient *http.Client
	Logger     *zap.Logger

	BatchSize        int
	Format           string
	Scale            float64
	Concurrency      int
	DownloadTimeout  time.Duration
	MaxDownloadBytes int64
}

// NewResolver returns a Resolver rendering PNGs at 2x.
func NewResolver(r ImageRenderer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		Renderer:         r,
		HTTPClient:       http.DefaultClient,
		Logger:           logger.Named("assets"),
		BatchSize:        DefaultBatchSize,
		Format:           "png",
		Scale:            2,
		Concurrency:      DefaultConcurrency,
		DownloadTimeout:  DefaultDownloadTimeout,
		MaxDownloadBytes: DefaultMaxDownloadBytes,
	}
}

// Resolve rewrites the src of every img whose src is empty or still a
// placeholder to the rendered URL of its provenance node. Failed chunks are
// logged and skipped; only context errors are returned. Nothing happens
// without a file key or renderer.
func (r *Resolver) Resolve(ctx context.Context, tree *dsmap.ComponentNode, fileKey string) (Stats, error) {
	urls, stats, err := r.urls(ctx, tree, fileKey)
	if err != nil || len(urls) == 0 {
		return stats, err
	}
	stats.Rewritten = rewrite(tree, func(id string) (string, bool) {
		u, ok := urls[id]
		return u, ok
	})
	return stats, nil
}

// Localize resolves image URLs, downloads them into projectDir/AssetDir and
// points placeholders at the local copies. An image that fails to download
// keeps its remote URL.
func (r *Resolver) Localize(ctx context.Context, tree *dsmap.ComponentNode, fileKey, projectDir string) (Stats, error) {
	urls, stats, err := r.urls(ctx, tree, fileKey)
	if err != nil || len(urls) == 0 {
		return stats, err
	}

	dir := filepath.Join(projectDir, filepath.FromSlash(AssetDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return stats, errors.Wrap(err, "creating asset directory")
	}

	var mu sync.Mutex
	local := make(map[string]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.Concurrency))
	for id, u := range urls {
		g.Go(func() error {
			name := SafeName(id) + ".png"
			err := r.download(gctx, u, filepath.Join(dir, name))
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.DownloadFailed++
				r.Logger.Warn("asset download failed, keeping remote url",
					zap.String("node", id), zap.Error(err))
				return nil
			}
			stats.Downloaded++
			local[id] = AssetURLPrefix + name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Rewritten = rewrite(tree, func(id string) (string, bool) {
		if p, ok := local[id]; ok {
			return p, true
		}
		u, ok := urls[id]
		return u, ok
	})
	return stats, nil
}

func (r *Resolver) urls(ctx context.Context, tree *dsmap.ComponentNode, fileKey string) (map[string]string, Stats, error) {
	var stats Stats
	if fileKey == "" || r.Renderer == nil {
		return nil, stats, nil
	}
	ids := CollectImageIDs(tree)
	if len(ids) == 0 {
		return nil, stats, nil
	}
	stats.Requested = len(ids)

	batch := r.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	urls := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += batch {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		chunk := ids[start:min(start+batch, len(ids))]
		got, err := r.Renderer.GetRenderedImages(ctx, fileKey, chunk, or(r.Format, "png"), r.scale())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			stats.FailedChunks++
			r.Logger.Warn("skipping image chunk", zap.Int("ids", len(chunk)), zap.Error(err))
			continue
		}
		for id, u := range got {
			if u != "" {
				urls[id] = u
			}
		}
	}
	stats.Resolved = len(urls)
	r.Logger.Debug("resolved image urls", zap.Int("requested", stats.Requested), zap.Int("resolved", stats.Resolved))
	return urls, stats, nil
}

func (r *Resolver) scale() float64 {
	if r.Scale <= 0 {
		return 2
	}
	return r.Scale
}

func (r *Resolver) download(ctx context.Context, u, dest string) error {
	timeout := r.DownloadTimeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status %d", resp.StatusCode)
	}

	limit := r.MaxDownloadBytes
	if limit <= 0 {
		limit = DefaultMaxDownloadBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > limit {
		return errors.Wrapf(ErrAssetTooLarge, "%d bytes", limit)
	}
	return os.WriteFile(dest, data, 0644)
}

// CollectImageIDs returns the provenance ids of img elements in pre-order,
// without duplicates.
func CollectImageIDs(tree *dsmap.ComponentNode) []string {
	seen := make(map[string]bool)
	var ids []string
	dsmap.Walk(tree, func(n *dsmap.ComponentNode) {
		if !isImage(n) || n.Ref == nil || n.Ref.FigmaNodeID == "" {
			return
		}
		if id := n.Ref.FigmaNodeID; !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	})
	return ids
}

// rewrite sets the src of unresolved images to lookup(id) and returns the
// number of images changed.
func rewrite(tree *dsmap.ComponentNode, lookup func(id string) (string, bool)) int {
	n := 0
	dsmap.Walk(tree, func(c *dsmap.ComponentNode) {
		if !isImage(c) || c.Ref == nil || c.Ref.FigmaNodeID == "" {
			return
		}
		src, _ := c.Props.GetString("src")
		if src != "" && !strings.HasPrefix(src, dsmap.ImagePlaceholderPrefix) {
			return
		}
		if u, ok := lookup(c.Ref.FigmaNodeID); ok {
			c.Props.Set("src", u)
			n++
		}
	})
	return n
}

func isImage(n *dsmap.ComponentNode) bool {
	return n.Kind == dsmap.KindElement && n.Name == "img"
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SafeName turns a node id into a file name.
func SafeName(id string) string {
	return unsafeChars.ReplaceAllString(id, "_")
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
