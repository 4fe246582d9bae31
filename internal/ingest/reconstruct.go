// Package ingest fetches Figma documents and repairs the subtrees the REST
// API truncates at its depth limit.
package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/ghkdsigm/figma-auto/internal/figma"
)

// Reconstruction defaults.
const (
	DefaultRounds    = 2
	DefaultBatchSize = 50
	DefaultMaxNodes  = 200
)

// NodeSource fetches node subtrees by id. Ids missing from the result
// (or mapped to nil) could not be fetched.
type NodeSource interface {
	GetNodes(ctx context.Context, fileKey string, ids []string, depth int) (map[string]*figma.RawNode, error)
}

// Stats summarises one reconstruction.
type Stats struct {
	Rounds       int `json:"rounds"`
	Requested    int `json:"requested"`
	Expanded     int `json:"expanded"`
	FailedChunks int `json:"failedChunks"`
}

// Reconstructor re-fetches containers whose children arrived empty and
// grafts the fetched subtrees into the tree.
type Reconstructor struct {
	Source    NodeSource
	Rounds    int
	BatchSize int
	MaxNodes  int
	Logger    *zap.Logger
}

// NewReconstructor returns a Reconstructor with the default limits.
func NewReconstructor(src NodeSource, logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{
		Source:    src,
		Rounds:    DefaultRounds,
		BatchSize: DefaultBatchSize,
		MaxNodes:  DefaultMaxNodes,
		Logger:    logger,
	}
}

// Reconstruct expands truncated containers below root. The input tree is
// never modified: the first replacement works on a deep copy, and the
// returned root is that copy (or root itself when nothing needed fetching).
//
// A failed chunk is logged and skipped. Only context errors are returned.
func (r *Reconstructor) Reconstruct(ctx context.Context, fileKey string, root *figma.RawNode, depth int) (*figma.RawNode, Stats, error) {
	var stats Stats
	if root == nil || r.Rounds <= 0 {
		return root, stats, nil
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	maxNodes := r.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	visited := make(map[string]bool)
	cloned := false

	for round := 0; round < r.Rounds; round++ {
		var candidates []string
		for _, id := range expandableIDs(root) {
			if !visited[id] {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) == 0 {
			break
		}
		stats.Rounds++
		if !cloned {
			root = root.Clone()
			cloned = true
		}

		for start := 0; start < len(candidates); start += batch {
			if err := ctx.Err(); err != nil {
				return root, stats, err
			}
			chunk := candidates[start:min(start+batch, len(candidates))]
			for _, id := range chunk {
				visited[id] = true
			}
			stats.Requested += len(chunk)

			nodes, err := r.Source.GetNodes(ctx, fileKey, chunk, depth)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return root, stats, ctxErr
				}
				stats.FailedChunks++
				log.Warn("skipping subtree chunk",
					zap.String("fileKey", fileKey),
					zap.Int("round", round+1),
					zap.Int("ids", len(chunk)),
					zap.Error(err))
				continue
			}

			for _, id := range chunk {
				next := nodes[id]
				if next == nil {
					continue
				}
				next.ID = id
				root = replaceNode(root, id, next)
				stats.Expanded++
				if stats.Expanded >= maxNodes {
					log.Debug("expansion cap reached", zap.Int("expanded", stats.Expanded))
					return root, stats, nil
				}
			}
		}
		log.Debug("reconstruction round done",
			zap.Int("round", round+1),
			zap.Int("candidates", len(candidates)),
			zap.Int("expanded", stats.Expanded))
	}
	return root, stats, nil
}

// expandableIDs lists truncated containers in pre-order.
func expandableIDs(root *figma.RawNode) []string {
	var out []string
	figma.Walk(root, func(n *figma.RawNode) bool {
		if n.IsTruncated() && n.ID != "" {
			out = append(out, n.ID)
		}
		return true
	})
	return out
}

// replaceNode swaps the first node with the given id for next and returns
// the (possibly new) root.
func replaceNode(root *figma.RawNode, id string, next *figma.RawNode) *figma.RawNode {
	if root.ID == id {
		return next
	}
	var done bool
	figma.Walk(root, func(n *figma.RawNode) bool {
		if done {
			return false
		}
		for i, c := range n.Children {
			if c != nil && c.ID == id {
				n.Children[i] = next
				done = true
				return false
			}
		}
		return true
	})
	return root
}
