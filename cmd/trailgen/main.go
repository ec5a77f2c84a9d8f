package main

import (
	"flag"
	"fmt"
	"os"

	trailgen "github.com/vaibhaw-/TrailSentry/internal/trailgen"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		genCmd := flag.NewFlagSet("generate", flag.ExitOnError)
		configPath := genCmd.String("config", "", "Path to workload config file")
		outPath := genCmd.String("out", "", "Output file (default stdout)")
		genCmd.Parse(os.Args[2:])
		if *configPath == "" {
			fmt.Println("Error: --config is required for 'generate'")
			genCmd.Usage()
			os.Exit(1)
		}
		if err := generate(*configPath, *outPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown subcommand: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func generate(configPath, outPath string) error {
	cfg, err := trailgen.ReadConfig(configPath)
	if err != nil {
		return err
	}
	records, err := trailgen.Generate(cfg)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := trailgen.WriteRecords(out, records); err != nil {
		return err
	}
	if outPath != "" {
		fmt.Printf("Wrote %d records to %s\n", len(records), outPath)
	}
	return nil
}

func printHelp() {
	fmt.Println(`Usage: trailgen <subcommand> --config <path>`)
	fmt.Println()
	fmt.Println("Subcommands:")
	fmt.Println("  generate  --config <path> [--out <file>]   Generate synthetic CloudTrail records")
	fmt.Println("  help                                        Show this help message")
}
