package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/classify"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
)

var actionsFile string

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Inspect and validate action risk-tier classification",
}

var actionsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an action classification YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if actionsFile == "" {
			return fmt.Errorf("--file is required")
		}

		f, err := os.Open(actionsFile)
		if err != nil {
			return fmt.Errorf("open actions file: %w", err)
		}
		defer f.Close()

		tiers, err := config.ValidateActions(f)
		if err != nil {
			return fmt.Errorf("actions validation failed: %w", err)
		}

		fmt.Fprintf(os.Stdout, "actions file validated successfully\n")
		fmt.Fprintf(os.Stdout, "high_risk: %d, administrative: %d\n",
			len(tiers.HighRisk), len(tiers.Administrative))
		return nil
	},
}

var actionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective action tier table",
	RunE: func(cmd *cobra.Command, args []string) error {
		var table *classify.Table
		var err error
		if actionsFile != "" {
			table, err = classify.LoadTable(actionsFile)
			if err != nil {
				return fmt.Errorf("load actions file: %w", err)
			}
		} else {
			table = classify.NewTable()
		}

		entries := table.Entries()
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(os.Stdout, "%-40s %s\n", name, entries[name].String())
		}
		fmt.Fprintf(os.Stdout, "%d classified actions\n", table.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(actionsValidateCmd)
	actionsCmd.AddCommand(actionsShowCmd)

	actionsCmd.PersistentFlags().StringVar(&actionsFile, "file", "", "Path to action classification YAML file")
}
