package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gramevo/pkg/gramevo"
)

type globalFlags struct {
	configPath string
	storeKind  string
	dbPath     string
	verbose    bool
}

type app struct {
	flags  globalFlags
	logger *zap.Logger
	client *gramevo.Client
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCmd(&app{})
	root.SetArgs(args)
	root.SetOut(out)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gramevoctl",
		Short: "Grammar-driven CNN genotype engine",
		Long: `gramevoctl samples, mutates and evolves convolutional network genotypes.

Networks are built from a grammar (features blocks) plus fixed
classification and output modules, and mutated structurally (ga_*) or
parametrically (dsge_*).`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config := zap.NewProductionConfig()
			if a.flags.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger

			client, err := gramevo.New(gramevo.Options{
				ConfigPath: a.flags.configPath,
				StoreKind:  a.flags.storeKind,
				DBPath:     a.flags.dbPath,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			a.client = client
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.client != nil {
				_ = a.client.Close()
			}
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "INI or YAML config file")
	pf.StringVar(&a.flags.storeKind, "store", "", "store backend: memory|sqlite")
	pf.StringVar(&a.flags.dbPath, "db-path", "", "sqlite database path")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newSampleCmd(a),
		newMutateCmd(a),
		newDecodeCmd(a),
		newShapeCmd(a),
		newOperatorsCmd(a),
		newRunCmd(a),
		newRunsCmd(a),
		newExportsCmd(a),
		newConfigCmd(a),
	)
	return root
}
