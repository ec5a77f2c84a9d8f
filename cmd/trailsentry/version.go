package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show TrailSentry version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("TrailSentry %s\n", Version)
	},
}
