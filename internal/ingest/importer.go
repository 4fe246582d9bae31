package ingest

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ghkdsigm/figma-auto/internal/figma"
)

// Depth limits accepted by the nodes endpoint.
const (
	MinDepth     = 1
	MaxDepth     = 6
	DefaultDepth = 6
)

// Ids and name of the synthetic root wrapping a multi-node selection.
const (
	SelectionRootID   = "A2UI_NODES_ROOT"
	SelectionRootName = "selected-nodes"
)

// ErrNothingImported is returned when none of the requested nodes exist.
var ErrNothingImported = errors.New("ingest: no nodes returned")

// NormalizeDepth clamps depth to [MinDepth, MaxDepth]. Zero or less selects
// DefaultDepth.
func NormalizeDepth(depth int) int {
	if depth <= 0 {
		return DefaultDepth
	}
	return max(MinDepth, min(MaxDepth, depth))
}

// FileSource can fetch whole documents as well as node subtrees.
type FileSource interface {
	NodeSource
	GetFile(ctx context.Context, fileKey string, depth int) (*figma.RawNode, error)
}

// Importer fetches a document or a selection and reconstructs it.
type Importer struct {
	source        FileSource
	reconstructor *Reconstructor
	logger        *zap.Logger
}

// NewImporter returns an Importer that reconstructs with rc. A nil rc uses
// the default limits.
func NewImporter(src FileSource, rc *Reconstructor, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rc == nil {
		rc = NewReconstructor(src, logger)
	}
	return &Importer{source: src, reconstructor: rc, logger: logger.Named("ingest")}
}

// ImportFile fetches the whole document.
func (im *Importer) ImportFile(ctx context.Context, fileKey string, depth int) (*figma.RawNode, Stats, error) {
	d := NormalizeDepth(depth)
	doc, err := im.source.GetFile(ctx, fileKey, d)
	if err != nil {
		return nil, Stats{}, errors.Wrapf(err, "importing file %s", fileKey)
	}
	return im.reconstructor.Reconstruct(ctx, fileKey, doc, d)
}

// ImportNodes fetches the selected nodes. A single id yields that node's
// subtree; several ids are wrapped in a synthetic FRAME root in request
// order, skipping ids the API did not return.
func (im *Importer) ImportNodes(ctx context.Context, fileKey string, ids []string, depth int) (*figma.RawNode, Stats, error) {
	if len(ids) == 0 {
		return im.ImportFile(ctx, fileKey, depth)
	}
	d := NormalizeDepth(depth)
	nodes, err := im.source.GetNodes(ctx, fileKey, ids, d)
	if err != nil {
		return nil, Stats{}, errors.Wrapf(err, "importing nodes of %s", fileKey)
	}

	var total Stats
	var docs []*figma.RawNode
	for _, id := range ids {
		doc := nodes[id]
		if doc == nil {
			im.logger.Warn("node not returned", zap.String("id", id))
			continue
		}
		doc, stats, err := im.reconstructor.Reconstruct(ctx, fileKey, doc, d)
		if err != nil {
			return nil, total, err
		}
		total.Rounds = max(total.Rounds, stats.Rounds)
		total.Requested += stats.Requested
		total.Expanded += stats.Expanded
		total.FailedChunks += stats.FailedChunks
		docs = append(docs, doc)
	}

	if len(ids) == 1 && len(docs) == 1 {
		return docs[0], total, nil
	}
	if len(docs) == 0 {
		return nil, total, errors.WithHint(ErrNothingImported, "check the node ids against the file")
	}
	return &figma.RawNode{
		ID:       SelectionRootID,
		Name:     SelectionRootName,
		Type:     figma.TypeFrame,
		Children: docs,
	}, total, nil
}
