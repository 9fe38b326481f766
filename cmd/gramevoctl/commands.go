package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gramevo/internal/genotype"
	"gramevo/pkg/gramevo"
)

func newSampleCmd(a *app) *cobra.Command {
	var (
		req gramevo.SampleRequest
		out string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Build a random network from the grammar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			net, err := a.client.Sample(cmd.Context(), req)
			if err != nil {
				return err
			}
			return emitNetwork(cmd.OutOrStdout(), a.client, net, out)
		},
	}
	cmd.Flags().Int64Var(&req.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&req.Features, "features", 0, "features modules (0 draws the length)")
	cmd.Flags().IntVar(&req.Classification, "classification", 0, "classification modules (0 draws the length)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the network as JSON")
	return cmd
}

func newMutateCmd(a *app) *cobra.Command {
	var (
		req gramevo.MutateRequest
		in  string
		out string
	)
	cmd := &cobra.Command{
		Use:   "mutate",
		Short: "Apply a mutation operator to a network file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == "" {
				return errors.New("mutate requires --in")
			}
			net, err := gramevo.ReadNetwork(in)
			if err != nil {
				return err
			}
			req.Network = net
			req.Operator = normalizeOperatorName(req.Operator)
			mutated, err := a.client.Mutate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return emitNetwork(cmd.OutOrStdout(), a.client, mutated, out)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "network JSON or best genotype export")
	cmd.Flags().StringVar(&req.Operator, "operator", "ga_mutation", "operator name or mutation type, e.g. ADDITION (see operators)")
	cmd.Flags().Int64Var(&req.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&req.Count, "count", 1, "number of applications")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the mutated network as JSON")
	return cmd
}

func newDecodeCmd(a *app) *cobra.Command {
	var req gramevo.DecodeRequest
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Expand a grammar symbol and print its phenotype",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.client.Decode(req)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "symbol=%s\n", res.Symbol)
			fmt.Fprintf(w, "phenotype=%s\n", res.Phenotype)
			for i, layer := range res.Layers {
				fmt.Fprintf(w, "layer[%d] %s %s\n", i, layer.Name, formatProperties(layer.Properties))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Symbol, "symbol", "", "grammar symbol (default: features symbol)")
	cmd.Flags().Int64Var(&req.Seed, "seed", 1, "random seed")
	return cmd
}

func newShapeCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "shape",
		Short: "Trace the spatial size through a network's features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == "" {
				return errors.New("shape requires --in")
			}
			net, err := gramevo.ReadNetwork(in)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, step := range a.client.Shape(net) {
				if step.Index < 0 {
					fmt.Fprintf(w, "input %dx%dx%d\n", step.Channels, step.Side, step.Side)
					continue
				}
				fmt.Fprintf(w, "%s[%d] %dx%dx%d\n", step.Kind, step.Index, step.Channels, step.Side, step.Side)
			}
			fmt.Fprintf(w, "flattened=%d\n", net.FlattenedFeatureSize())
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "network JSON or best genotype export")
	return cmd
}

func newOperatorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List mutation operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.client.Operators()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var req gramevo.RunRequest
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a population with the proxy evaluator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := a.client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run completed run_id=%s generations=%d final_best=%.4f layers=%d\n",
				summary.RunID,
				len(summary.BestByGeneration),
				summary.FinalBest,
				summary.FinalBestLayers,
			)
			if summary.RunDir != "" {
				fmt.Fprintf(w, "artifacts=%s\n", filepath.Clean(summary.RunDir))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id (default: random)")
	cmd.Flags().Int64Var(&req.Seed, "seed", 0, "random seed (0 keeps the configured seed)")
	cmd.Flags().IntVar(&req.Population, "pop", 0, "population size")
	cmd.Flags().IntVar(&req.Generations, "gens", 0, "generations")
	cmd.Flags().StringVar(&req.OutputDir, "output-dir", "", "artifact directory")
	cmd.Flags().IntVar(&req.Target, "target", 0, "proxy evaluator flattened size target")
	cmd.Flags().Float64Var(&req.LayerPenalty, "layer-penalty", 0.1, "proxy evaluator cost per layer")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var (
		outputDir string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			entries, err := a.client.Runs(outputDir, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "no runs found")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "run_id=%s created_at=%s seed=%d pop=%d gens=%d final_best=%.4f layers=%d\n",
					e.RunID, e.CreatedAtUTC, e.Seed, e.PopulationSize, e.Generations, e.FinalBestAccuracy, e.FinalBestLayers)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "artifact directory")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	return cmd
}

func newExportsCmd(a *app) *cobra.Command {
	var runDir string
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List best genotype exports of a run directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runDir == "" {
				return errors.New("exports requires --run-dir")
			}
			items, err := a.client.Exports(runDir)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(w, "no exports found")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(w, "generation=%d accuracy=%.4f layers=%d network=%s path=%s\n",
					item.Generation, item.Accuracy, item.Layers, item.NetworkID, item.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runDir, "run-dir", "", "run artifact directory")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.client.Config()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func emitNetwork(w io.Writer, client *gramevo.Client, net genotype.Network, out string) error {
	if out != "" {
		if err := gramevo.WriteNetwork(out, net); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", filepath.Clean(out))
	}
	if err := net.Describe(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "fingerprint=%s layers=%d\n", client.Signature(net).Fingerprint, net.LayerCount())
	return nil
}

func formatProperties(props map[string][]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+strings.Join(props[k], ","))
	}
	return strings.Join(parts, " ")
}
