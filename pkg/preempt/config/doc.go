/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
It is used to load checkpointer settings from YAML/JSON experiment config
files without verbose type assertions and nil checks.

# Recognized Keys

The checkpointer reads these keys via preempt.FromConfig:

	save_dir:       checkpoint directory root (string, default "checkpoints")
	store:          "file" or "sqlite" (string, default "file")
	sqlite_path:    database path when store is "sqlite" (string)
	verbose:        enable per-action debug logging (bool, default false)
	keep_on_error:  keep checkpoints when a bracketed unit of work fails
	                (bool, default false)
	metadata:       default metadata merged into every checkpoint (map)

Unknown keys are ignored, so checkpointer settings can live inside a larger
experiment configuration.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "save_dir": "/scratch/ckpts",
	    "verbose":  true,
	})

	dir := cfg.String("save_dir", "checkpoints") // "/scratch/ckpts"
	verbose := cfg.Bool("verbose", false)        // true

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("experiment.yaml")
	if err != nil {
	    log.Fatal(err)
	}

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
