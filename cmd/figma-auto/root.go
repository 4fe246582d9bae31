package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
	"github.com/ghkdsigm/figma-auto/internal/assets"
	"github.com/ghkdsigm/figma-auto/internal/cli"
	"github.com/ghkdsigm/figma-auto/internal/codegen/vue"
	"github.com/ghkdsigm/figma-auto/internal/config"
	"github.com/ghkdsigm/figma-auto/internal/dsmap"
	"github.com/ghkdsigm/figma-auto/internal/figma"
	"github.com/ghkdsigm/figma-auto/internal/heuristics"
	"github.com/ghkdsigm/figma-auto/internal/ingest"
	"github.com/ghkdsigm/figma-auto/internal/logging"
	"github.com/ghkdsigm/figma-auto/internal/pipeline"
)

// app is the state shared by every command of one invocation.
type app struct {
	out, errOut io.Writer
	projectDir  string

	configFile  string
	noColor     bool
	metricsFile string

	v        *viper.Viper
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
}

// flagKeys binds command-line flags to configuration keys. A flag only
// overrides the file and environment when it is set explicitly.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"work-dir":      "work_dir",
	"policy":        "policy",
	"target":        "target",
	"depth":         "figma.depth",
	"design-system": "design_system",
	"heuristics":    "heuristics",
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "figma-auto",
		Short: "figma-auto - turn Figma designs into Vue and Nuxt projects",
		Long: `figma-auto converts a Figma document into a Vue 3 project built on a
design-system component library.

The conversion runs in four steps, each persisting its result in the work
directory so it can be re-run on its own:

  ingest     fetch the document (or read a local export) -> raw.json
  normalize  build the semantic tree                     -> a2ui.json
  map        map onto the design system under a policy   -> ds.json
  generate   write the project, manifest.json and README

Examples:
  figma-auto run --url "https://www.figma.com/design/KEY/Name?node-id=1-2"
  figma-auto run --input export.json --policy RAW --target vue --zip
  figma-auto map --policy STRICT && figma-auto generate --out ./screen`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default .figma-auto/config.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	pf.String("work-dir", "", "directory holding the step state files")
	pf.BoolVar(&a.noColor, "no-color", false, "disable coloured output")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Figma client metrics to this file on exit")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newNormalizeCmd(a))
	root.AddCommand(newMapCmd(a))
	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// setup loads the configuration and builds the logger for cmd.
func (a *app) setup(cmd *cobra.Command) error {
	if a.noColor {
		cli.ColorEnabled = false
	}
	if a.projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "resolving working directory")
		}
		a.projectDir = wd
	}

	v, err := config.New(a.projectDir, a.configFile)
	if err != nil {
		return err
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return errors.Wrap(bindErr, "binding flags")
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}

	logger, err := logging.NewWriter(a.errOut, cfg.Log.Level, logging.Format(cfg.Log.Format))
	if err != nil {
		return err
	}
	a.v, a.cfg, a.logger = v, cfg, logger
	a.registry = prometheus.NewRegistry()
	if cfg.File != "" {
		logger.Debug("loaded config", zap.String("file", cfg.File))
	}
	return nil
}

// pipeline wires the stages from the configuration. Without a token the
// API-backed parts are left out and only local exports can be ingested.
func (a *app) pipeline() (*pipeline.Pipeline, error) {
	var ds *dsmap.DesignSystem
	if a.cfg.DesignSystem != "" {
		loaded, err := dsmap.LoadDesignSystem(a.cfg.DesignSystem)
		if err != nil {
			return nil, err
		}
		ds = loaded
	}
	var tables *heuristics.Tables
	if a.cfg.Heuristics != "" {
		loaded, err := heuristics.Load(a.cfg.Heuristics)
		if err != nil {
			return nil, err
		}
		tables = loaded
	}

	mapper := dsmap.NewMapper(ds, tables, a.logger)
	normalizer := a2ui.NewNormalizer(tables)

	var (
		imp      *ingest.Importer
		rc       *ingest.Reconstructor
		resolver vue.AssetResolver
	)
	if a.cfg.Figma.Token != "" {
		client := figma.NewClient(a.cfg.FigmaOptions(a.registry, a.logger))
		rc = ingest.NewReconstructor(client, a.logger)
		rc.Rounds = a.cfg.Figma.ExpandRounds
		rc.BatchSize = a.cfg.Figma.BatchSize
		rc.MaxNodes = a.cfg.Figma.ExpandMaxNodes
		imp = ingest.NewImporter(client, rc, a.logger)
		resolver = assets.NewResolver(client, a.logger)
	}
	gen := vue.NewGenerator(mapper.DS, resolver, a.logger)
	return pipeline.New(imp, rc, normalizer, mapper, gen, a.logger), nil
}

// writeMetrics flushes the client counters when --metrics-file is set.
func (a *app) writeMetrics() error {
	if a.metricsFile == "" || a.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", a.metricsFile)
	}
	return nil
}
