package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"resectionplan/pkg/phantom"
	"resectionplan/pkg/planning"
)

type planFlags struct {
	targets   []string
	phantom   bool
	plan      string
	session   string
	outputDir string
	axis      string
}

var planOpts planFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute resection surfaces and their safety-margin contours",
	Long: `Load the target meshes, add the resections of a plan file (or one default
resection), replay an optional recorded session and export each surface as STL,
its margin contour as YAML, the updated plan and a snapshot image.

Targets are given as structure=path or structure:id=path, for example
  --target parenchyma=liver.stl --target tumor:t1=lesion.stl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := planOpts.params()
		if err != nil {
			return err
		}
		return runPlan(cmd, params)
	},
}

func init() {
	addPlanFlags(planCmd, &planOpts)
	rootCmd.AddCommand(planCmd)
}

func addPlanFlags(cmd *cobra.Command, f *planFlags) {
	cmd.Flags().StringArrayVarP(&f.targets, "target", "t", nil, "target mesh as structure[:id]=path (repeatable)")
	cmd.Flags().BoolVar(&f.phantom, "phantom", false, "plan against the built-in synthetic anatomy")
	cmd.Flags().StringVarP(&f.plan, "plan", "p", "", "plan file to resume")
	cmd.Flags().StringVarP(&f.session, "session", "s", "", "recorded session to replay")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "output", "directory for exported results")
	cmd.Flags().StringVar(&f.axis, "axis", "z", "snapshot camera axis (x, y or z)")
}

func (f *planFlags) params() (*planning.Params, error) {
	params := &planning.Params{
		ConfigFile:  configFile,
		PlanFile:    f.plan,
		SessionFile: f.session,
		OutputDir:   f.outputDir,
		Axis:        f.axis,
	}
	for _, arg := range f.targets {
		t, err := planning.ParseTargetFile(arg)
		if err != nil {
			return nil, err
		}
		params.Targets = append(params.Targets, t)
	}
	if f.phantom {
		spec := phantom.DefaultSpec()
		params.Phantom = &spec
	}
	return params, nil
}

func runPlan(cmd *cobra.Command, params *planning.Params) error {
	out := cmd.OutOrStdout()
	params.Out = out

	planner := planning.NewPlanner(params)
	start := time.Now()
	if err := planner.Process(); err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}
	printMetrics(cmd, planner, time.Since(start))
	return nil
}

func printMetrics(cmd *cobra.Command, planner *planning.Planner, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nPlanning completed in %.2f seconds\n\n", elapsed.Seconds())
	fmt.Fprintln(out, "Proximity Metrics:")
	fmt.Fprintln(out, "==================")
	for _, m := range planner.GetMetrics() {
		fmt.Fprintf(out, "%s", m.ID)
		if m.Name != "" {
			fmt.Fprintf(out, " (%s)", m.Name)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Margin: %.2f mm\n", m.Margin)
		fmt.Fprintf(out, "  Distance: min %.2f, max %.2f, mean %.2f, std %.2f mm\n", m.Min, m.Max, m.Mean, m.StdDev)
		fmt.Fprintf(out, "  Inside margin: %d vertices (%.1f%%)\n", m.Violations, 100*m.CloseFraction)
		fmt.Fprintf(out, "  Margin contour length: %.2f mm\n", m.ContourLength)
	}
	if min, ok := planner.MinimumDistance(); ok {
		fmt.Fprintf(out, "\nClosest approach over all resections: %.2f mm\n", min)
	}
}
