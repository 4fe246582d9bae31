package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
	"github.com/ghkdsigm/figma-auto/internal/cli"
	"github.com/ghkdsigm/figma-auto/internal/codegen/vue"
	"github.com/ghkdsigm/figma-auto/internal/figma"
	"github.com/ghkdsigm/figma-auto/internal/pipeline"
)

// diagnosticLimit caps the diagnostics printed after a run. The full list
// is in the generated diagnostics file.
const diagnosticLimit = 20

var stepMessages = map[pipeline.Step]string{
	pipeline.StepIngest:    "Fetching design",
	pipeline.StepNormalize: "Building semantic tree",
	pipeline.StepMap:       "Mapping onto the design system",
	pipeline.StepGenerate:  "Generating project",
}

// runFlags holds the flags that select input and output.
type runFlags struct {
	fileKey        string
	url            string
	nodeIDs        []string
	input          string
	out            string
	zip            bool
	downloadAssets bool
}

func (f *runFlags) addInput(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.fileKey, "file-key", "", "Figma file key")
	fl.StringVar(&f.url, "url", "", "Figma file or frame URL (sets --file-key and --node-ids)")
	fl.StringSliceVar(&f.nodeIDs, "node-ids", nil, "node ids to import, comma separated")
	fl.StringVar(&f.input, "input", "", "local JSON export to read instead of calling the API")
	fl.Int("depth", 0, "depth of the initial fetch (1-6)")
	fl.String("design-system", "", "design system tokens file (JSON or YAML)")
	fl.String("heuristics", "", "heuristic keyword tables file (YAML)")
}

func addPolicy(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "mapping policy: STRICT, TOLERANT, MIXED or RAW")
}

func (f *runFlags) addOutput(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.String("target", "", "project flavour: nuxt or vue")
	fl.StringVar(&f.out, "out", "", "output directory (default <work-dir>/out)")
	fl.BoolVar(&f.zip, "zip", false, "also write a .zip of the project")
	fl.BoolVar(&f.downloadAssets, "download-assets", false, "copy images into the project instead of linking them")
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every step from ingest to generate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSteps(cmd.Context(), pipeline.Steps, f)
		},
	}
	f.addInput(cmd)
	addPolicy(cmd)
	f.addOutput(cmd)
	return cmd
}

func newIngestCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the document and rebuild truncated subtrees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSteps(cmd.Context(), []pipeline.Step{pipeline.StepIngest}, f)
		},
	}
	f.addInput(cmd)
	return cmd
}

func newNormalizeCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Build the semantic tree from raw.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSteps(cmd.Context(), []pipeline.Step{pipeline.StepNormalize}, f)
		},
	}
	addPolicy(cmd)
	cmd.Flags().String("heuristics", "", "heuristic keyword tables file (YAML)")
	return cmd
}

func newMapCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map the semantic tree onto the design system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSteps(cmd.Context(), []pipeline.Step{pipeline.StepMap}, f)
		},
	}
	addPolicy(cmd)
	cmd.Flags().String("design-system", "", "design system tokens file (JSON or YAML)")
	cmd.Flags().String("heuristics", "", "heuristic keyword tables file (YAML)")
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the project from ds.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSteps(cmd.Context(), []pipeline.Step{pipeline.StepGenerate}, f)
		},
	}
	f.addOutput(cmd)
	cmd.Flags().String("design-system", "", "design system tokens file (JSON or YAML)")
	return cmd
}

// options combines the flags with the decoded configuration.
func (a *app) options(f *runFlags) (pipeline.Options, error) {
	policy, err := a2ui.ParsePolicy(a.cfg.Policy)
	if err != nil {
		return pipeline.Options{}, err
	}
	target, err := vue.ParseTarget(a.cfg.Target)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		WorkDir:        a.cfg.WorkDir,
		FileKey:        f.fileKey,
		NodeIDs:        f.nodeIDs,
		Depth:          a.cfg.Figma.Depth,
		Input:          f.input,
		Policy:         policy,
		Target:         target,
		OutDir:         f.out,
		Zip:            f.zip,
		DownloadAssets: f.downloadAssets,
	}
	if f.url != "" {
		if !figma.IsFigmaURL(f.url) {
			return pipeline.Options{}, errors.WithHint(errors.Newf("--url %q is not a Figma link", f.url),
				"copy the link from Figma (figma.com/design/...) or pass --file-key")
		}
		key, node, err := figma.ParseFigmaURL(f.url)
		if err != nil {
			return pipeline.Options{}, err
		}
		if opts.FileKey == "" {
			opts.FileKey = key
		}
		if len(opts.NodeIDs) == 0 && node != "" {
			opts.NodeIDs = []string{node}
		}
	}
	return opts, nil
}

// runSteps runs steps in order behind a spinner each, then prints the
// diagnostics and the project location.
func (a *app) runSteps(ctx context.Context, steps []pipeline.Step, f *runFlags) error {
	opts, err := a.options(f)
	if err != nil {
		return err
	}
	if steps[0] == pipeline.StepIngest && opts.Input == "" && opts.FileKey != "" {
		if err := a.cfg.RequireToken(); err != nil {
			return err
		}
	}
	p, err := a.pipeline()
	if err != nil {
		return err
	}

	rep := &pipeline.Report{}
	var runErr error
	for _, st := range steps {
		runErr = cli.Step(ctx, a.errOut, stepMessages[st], func(ctx context.Context) error {
			return p.RunStep(ctx, st, opts, rep)
		})
		if runErr != nil {
			break
		}
	}

	a.report(rep)
	if err := a.writeMetrics(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *app) report(rep *pipeline.Report) {
	if rep.Ingest.Requested > 0 {
		fmt.Fprintf(a.out, "%s\n", cli.Muted(fmt.Sprintf("expanded %d of %d truncated subtrees in %d rounds",
			rep.Ingest.Expanded, rep.Ingest.Requested, rep.Ingest.Rounds)))
	}
	if len(rep.Diagnostics) > 0 {
		fmt.Fprintf(a.out, "\n%s\n", cli.Heading("Diagnostics"))
		fmt.Fprint(a.out, cli.Diagnostics(rep.Diagnostics, diagnosticLimit))
		fmt.Fprintf(a.out, "%s\n", cli.Summary(rep.Diagnostics))
	}
	if res := rep.Result; res != nil {
		fmt.Fprintf(a.out, "\n%s\n", cli.Success(fmt.Sprintf("Project written to %s (%d files)", res.Dir, len(res.Files))))
		if res.Zip != "" {
			fmt.Fprintf(a.out, "  %s\n", cli.Muted("archive: "+res.Zip))
		}
		if res.Assets.Requested > 0 {
			fmt.Fprintf(a.out, "  %s\n", cli.Muted(fmt.Sprintf("images: %d resolved, %d downloaded",
				res.Assets.Resolved, res.Assets.Downloaded)))
		}
	}
}
