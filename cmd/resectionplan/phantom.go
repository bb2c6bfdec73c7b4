package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"resectionplan/pkg/phantom"
	"resectionplan/pkg/stl"
)

var (
	phantomDir   string
	phantomCells int
)

var phantomCmd = &cobra.Command{
	Use:   "phantom",
	Short: "Write synthetic organ, tumour and vessel meshes as STL",
	Args:  cobra.NoArgs,
	RunE:  runPhantom,
}

func init() {
	phantomCmd.Flags().StringVarP(&phantomDir, "output-dir", "o", "phantom", "directory for the STL files")
	phantomCmd.Flags().IntVar(&phantomCells, "cells", phantom.DefaultCells, "marching cubes cells along the longest axis")
	rootCmd.AddCommand(phantomCmd)
}

func runPhantom(cmd *cobra.Command, args []string) error {
	spec := phantom.DefaultSpec()
	spec.Cells = phantomCells
	anatomy, err := phantom.Build(spec)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	var targets []string
	for _, a := range anatomy {
		path := filepath.Join(phantomDir, a.ID()+".stl")
		if err := stl.WriteMesh(path, a.Mesh()); err != nil {
			return fmt.Errorf("failed to save %s: %w", a.ID(), err)
		}
		fmt.Fprintf(out, "Saved %s (%d triangles) to %s\n", a.ID(), a.Mesh().NumTriangles(), path)
		targets = append(targets, fmt.Sprintf("--target %s:%s=%s", a.Structure(), a.ID(), path))
	}
	fmt.Fprintln(out, "\nPlan against it with:")
	fmt.Fprint(out, "  resectionplan plan")
	for _, t := range targets {
		fmt.Fprintf(out, " %s", t)
	}
	fmt.Fprintln(out)
	return nil
}
