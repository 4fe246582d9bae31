// Package pipeline runs the conversion as four named steps. Each step reads
// the state file written by the previous one from a work directory, so any
// step can be re-run on its own.
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
	"github.com/ghkdsigm/figma-auto/internal/codegen/vue"
	"github.com/ghkdsigm/figma-auto/internal/dsmap"
	"github.com/ghkdsigm/figma-auto/internal/figma"
	"github.com/ghkdsigm/figma-auto/internal/ingest"
)

// Step names a pipeline stage.
type Step string

const (
	StepIngest    Step = "INGEST"
	StepNormalize Step = "NORMALIZE"
	StepMap       Step = "MAP"
	StepGenerate  Step = "GENERATE"
)

// Steps lists every step in execution order.
var Steps = []Step{StepIngest, StepNormalize, StepMap, StepGenerate}

// ParseStep accepts a step name in any case.
func ParseStep(s string) (Step, error) {
	want := Step(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range Steps {
		if st == want {
			return st, nil
		}
	}
	return "", errors.WithHint(errors.Newf("unknown step %q", s), "use one of INGEST, NORMALIZE, MAP, GENERATE")
}

// State files inside the work directory.
const (
	RawFile    = "raw.json"
	A2UIFile   = "a2ui.json"
	DSFile     = "ds.json"
	DefaultOut = "out"
)

// ErrNoInput is returned by Ingest when neither a file key nor a local
// export was given.
var ErrNoInput = errors.New("pipeline: no input")

// ErrNoSource is returned when a file key is given but no API client was
// configured.
var ErrNoSource = errors.New("pipeline: no Figma client configured")

// RawDocument is the persisted output of INGEST.
type RawDocument struct {
	FileKey   string         `json:"fileKey,omitempty"`
	NodeIDs   []string       `json:"nodeIds,omitempty"`
	Source    string         `json:"source"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Stats     ingest.Stats   `json:"stats"`
	Document  *figma.RawNode `json:"document"`
}

// Options selects the input and output of a run.
type Options struct {
	WorkDir string

	// FileKey and NodeIDs select a document on the API. Input, when set,
	// is a local JSON export read instead of calling the API.
	FileKey string
	NodeIDs []string
	Depth   int
	Input   string

	Policy a2ui.Policy

	Target         vue.Target
	OutDir         string
	Zip            bool
	DownloadAssets bool
}

// outDir defaults to WorkDir/out.
func (o Options) outDir() string {
	if o.OutDir != "" {
		return o.OutDir
	}
	return filepath.Join(o.WorkDir, DefaultOut)
}

func (o Options) path(name string) string { return filepath.Join(o.WorkDir, name) }

// Report collects what a run produced.
type Report struct {
	Steps       []Step
	Ingest      ingest.Stats
	Diagnostics a2ui.Diagnostics
	Result      *vue.Result
}

// Pipeline wires the stages together. Importer and Reconstructor may be nil
// when only local exports are processed.
type Pipeline struct {
	Importer      *ingest.Importer
	Reconstructor *ingest.Reconstructor
	Normalizer    *a2ui.Normalizer
	Mapper        *dsmap.Mapper
	Generator     *vue.Generator
	Logger        *zap.Logger

	Now func() time.Time
}

// New returns a Pipeline. Nil stages fall back to their defaults.
func New(imp *ingest.Importer, rc *ingest.Reconstructor, n *a2ui.Normalizer, m *dsmap.Mapper, g *vue.Generator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = a2ui.NewNormalizer(nil)
	}
	if m == nil {
		m = dsmap.NewMapper(nil, nil, logger)
	}
	if g == nil {
		g = vue.NewGenerator(m.DS, nil, logger)
	}
	return &Pipeline{
		Importer:      imp,
		Reconstructor: rc,
		Normalizer:    n,
		Mapper:        m,
		Generator:     g,
		Logger:        logger.Named("pipeline"),
		Now:           time.Now,
	}
}

// Run executes the steps from `from` through GENERATE. An empty from
// starts at INGEST.
func (p *Pipeline) Run(ctx context.Context, from Step, opts Options) (*Report, error) {
	if from == "" {
		from = StepIngest
	}
	start := -1
	for i, st := range Steps {
		if st == from {
			start = i
		}
	}
	if start < 0 {
		return nil, errors.Newf("unknown step %q", from)
	}

	rep := &Report{}
	for _, st := range Steps[start:] {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := p.RunStep(ctx, st, opts, rep); err != nil {
			return rep, err
		}
		rep.Steps = append(rep.Steps, st)
	}
	return rep, nil
}

// RunStep executes a single step and records its output in rep, which may
// be nil.
func (p *Pipeline) RunStep(ctx context.Context, st Step, opts Options, rep *Report) error {
	if rep == nil {
		rep = &Report{}
	}
	p.Logger.Debug("step", zap.String("step", string(st)), zap.String("workDir", opts.WorkDir))

	switch st {
	case StepIngest:
		doc, err := p.Ingest(ctx, opts)
		if err != nil {
			return err
		}
		rep.Ingest = doc.Stats
	case StepNormalize:
		root, err := p.Normalize(opts)
		if err != nil {
			return err
		}
		rep.Diagnostics = root.Diagnostics
	case StepMap:
		root, err := p.Map(opts)
		if root != nil {
			rep.Diagnostics = root.Diagnostics
		}
		var mf *dsmap.MappingFailedError
		if errors.As(err, &mf) {
			rep.Diagnostics = mf.Diagnostics
		}
		if err != nil {
			return err
		}
	case StepGenerate:
		res, err := p.Generate(ctx, opts)
		if err != nil {
			return err
		}
		rep.Result = res
	default:
		return errors.Newf("unknown step %q", st)
	}
	return nil
}

// Ingest fetches or reads the raw document and writes raw.json.
func (p *Pipeline) Ingest(ctx context.Context, opts Options) (*RawDocument, error) {
	doc := &RawDocument{FileKey: opts.FileKey, NodeIDs: opts.NodeIDs, FetchedAt: p.Now().UTC()}

	switch {
	case opts.Input != "":
		data, err := os.ReadFile(opts.Input)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", opts.Input)
		}
		raw, err := DecodeRaw(data, opts.NodeIDs)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", opts.Input)
		}
		doc.Source = "file:" + opts.Input
		doc.Document = raw
		if opts.FileKey != "" && p.Reconstructor != nil {
			raw, stats, err := p.Reconstructor.Reconstruct(ctx, opts.FileKey, raw, ingest.NormalizeDepth(opts.Depth))
			if err != nil {
				return nil, err
			}
			doc.Document, doc.Stats = raw, stats
		}
	case opts.FileKey != "":
		if p.Importer == nil {
			return nil, errors.WithHint(ErrNoSource, "set FIGMA_TOKEN or pass --input with a local export")
		}
		raw, stats, err := p.Importer.ImportNodes(ctx, opts.FileKey, opts.NodeIDs, opts.Depth)
		if err != nil {
			return nil, err
		}
		doc.Source = "api"
		doc.Document, doc.Stats = raw, stats
	default:
		return nil, errors.WithHint(ErrNoInput, "pass --file-key, --url or --input")
	}

	if err := writeJSON(opts.path(RawFile), doc); err != nil {
		return nil, err
	}
	p.Logger.Info("ingested",
		zap.String("source", doc.Source),
		zap.Int("expanded", doc.Stats.Expanded),
		zap.Int("failedChunks", doc.Stats.FailedChunks))
	return doc, nil
}

// Normalize reads raw.json and writes a2ui.json.
func (p *Pipeline) Normalize(opts Options) (*a2ui.Root, error) {
	var doc RawDocument
	if err := readJSON(opts.path(RawFile), &doc, StepIngest); err != nil {
		return nil, err
	}
	if doc.Document == nil {
		return nil, errors.Newf("%s has no document", opts.path(RawFile))
	}

	tree, diags := p.Normalizer.Normalize(doc.Document, policyOr(opts.Policy), nil)
	if tree == nil {
		return nil, errors.New("document has no visible content")
	}
	root := a2ui.NewRoot(tree, diags, doc.FileKey, p.Now())
	if err := writeJSON(opts.path(A2UIFile), root); err != nil {
		return nil, err
	}
	p.Logger.Info("normalized", zap.Int("diagnostics", len(diags)))
	return root, nil
}

// Map reads a2ui.json and writes ds.json. Under STRICT a failed mapping
// writes nothing and returns a *dsmap.MappingFailedError.
func (p *Pipeline) Map(opts Options) (*dsmap.Root, error) {
	var in a2ui.Root
	if err := readJSON(opts.path(A2UIFile), &in, StepNormalize); err != nil {
		return nil, err
	}
	if in.Tree == nil {
		return nil, errors.Newf("%s has no tree", opts.path(A2UIFile))
	}

	m := *p.Mapper
	m.Now = p.Now
	root, err := m.MapRoot(&in, policyOr(opts.Policy))
	if err != nil {
		return nil, err
	}
	if err := writeJSON(opts.path(DSFile), root); err != nil {
		return nil, err
	}
	p.Logger.Info("mapped", zap.Stringer("policy", root.Meta.Policy), zap.Int("diagnostics", len(root.Diagnostics)))
	return root, nil
}

// Generate reads ds.json and writes the project. ds.json itself is left
// untouched, so generating twice yields the same project.
func (p *Pipeline) Generate(ctx context.Context, opts Options) (*vue.Result, error) {
	var root dsmap.Root
	if err := readJSON(opts.path(DSFile), &root, StepMap); err != nil {
		return nil, err
	}
	if root.Tree == nil {
		return nil, errors.Newf("%s has no tree", opts.path(DSFile))
	}
	return p.Generator.Generate(ctx, &root, vue.Options{
		Target:         opts.Target,
		OutDir:         opts.outDir(),
		Zip:            opts.Zip,
		FileKey:        root.Meta.FileKey,
		DownloadAssets: opts.DownloadAssets,
	})
}

func policyOr(p a2ui.Policy) a2ui.Policy {
	if p == "" {
		return a2ui.DefaultPolicy
	}
	return p
}

// DecodeRaw accepts a bare node, a files response ({"document": ...}) or a
// nodes response ({"nodes": {id: {"document": ...}}}). Several nodes are
// wrapped in a selection root, ordered by ids when given and by id
// otherwise.
func DecodeRaw(data []byte, ids []string) (*figma.RawNode, error) {
	var probe struct {
		Document *figma.RawNode        `json:"document"`
		Nodes    map[string]*nodeEntry `json:"nodes"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "parsing JSON")
	}
	switch {
	case probe.Document != nil:
		return probe.Document, nil
	case probe.Nodes != nil:
		return selection(probe.Nodes, ids)
	}

	var n figma.RawNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, errors.Wrap(err, "parsing node")
	}
	if n.ID == "" && n.Type == "" {
		return nil, errors.New("not a Figma node export")
	}
	return &n, nil
}

type nodeEntry struct {
	Document *figma.RawNode `json:"document"`
}

func selection(nodes map[string]*nodeEntry, ids []string) (*figma.RawNode, error) {
	if len(ids) == 0 {
		for id := range nodes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	var docs []*figma.RawNode
	for _, id := range ids {
		if e := nodes[id]; e != nil && e.Document != nil {
			docs = append(docs, e.Document)
		}
	}
	switch len(docs) {
	case 0:
		return nil, errors.WithHint(ingest.ErrNothingImported, "check the node ids against the export")
	case 1:
		return docs[0], nil
	}
	return &figma.RawNode{
		ID:       ingest.SelectionRootID,
		Name:     ingest.SelectionRootName,
		Type:     figma.TypeFrame,
		Children: docs,
	}, nil
}
