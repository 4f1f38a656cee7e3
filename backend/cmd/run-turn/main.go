// Command run-turn drives one turn of the pipeline from the command
// line (spec §6.5): `run-turn --state <file> --intent <file> [--seed
// <n>] [--fixture <file>]`. Exit codes: 0 success, 1 any gate failure,
// 2 usage error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rpgengine/arbiter/backend/internal/config"
	"github.com/rpgengine/arbiter/backend/internal/pipeline"
	"github.com/rpgengine/arbiter/backend/pkg/logger"
)

const (
	exitSuccess = 0
	exitGate    = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("run-turn", flag.ContinueOnError)
	fs.SetOutput(stderr)
	statePath := fs.String("state", "", "path to the initial GameState JSON file")
	intentPath := fs.String("intent", "", "path to the turn intent JSON file")
	seed := fs.Int("seed", 0, "RNG seed to apply before the adapter runs")
	fixturePath := fs.String("fixture", "", "path to a fixture envelope JSON file, used instead of calling the adapter")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	seedSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})

	if *statePath == "" || *intentPath == "" {
		fmt.Fprintln(stderr, "run-turn: --state and --intent are required")
		return exitUsage
	}

	intentRaw, err := os.ReadFile(*intentPath)
	if err != nil {
		fmt.Fprintf(stderr, "run-turn: failed to read intent file: %v\n", err)
		return exitUsage
	}
	var intent pipeline.Intent
	if err := json.Unmarshal(intentRaw, &intent); err != nil {
		fmt.Fprintf(stderr, "run-turn: invalid intent JSON: %v\n", err)
		return exitUsage
	}

	if _, err := os.Stat(*statePath); err != nil {
		fmt.Fprintf(stderr, "run-turn: failed to read state file: %v\n", err)
		return exitUsage
	}

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		if report, ok := cfgErr.(*config.MissingVarReport); ok {
			fmt.Fprintf(stderr, "run-turn: %s\n", report.Error())
		} else {
			fmt.Fprintf(stderr, "run-turn: failed to load configuration: %v\n", cfgErr)
		}
		return exitUsage
	}

	log := logger.New(logger.Config{Level: "warn"})
	adapter := pipeline.NewAdapter(pipeline.AdapterConfig{
		Provider: cfg.Adapter.Provider,
		APIKey:   cfg.Adapter.APIKey,
		Model:    cfg.Adapter.Model,
	})
	pipe := pipeline.New(adapter, cfg.Server.BundleDir, log)

	var seedPtr *int
	if seedSet {
		seedPtr = seed
	}

	result := pipe.RunTurn(context.Background(), *statePath, intent, seedPtr, *fixturePath)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)

	if !result.OK {
		return exitGate
	}
	return exitSuccess
}
