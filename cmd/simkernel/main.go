// Command simkernel is the CLI entrypoint for the task-batch simulation
// harness (SPEC_FULL.md §6.4), grounded on cmd/kernel/main.go's flag/slog/
// signal.NotifyContext idiom and original_source/apps/main/main.cpp's
// read-stdin-then-construct-then-run shape.
//
// The concrete model family is fixed at compile time, matching the
// source's template-instantiated `simulator_t<fake_model, basic_callback,
// fake_tweaks>`: this binary always runs the reference random-walk model
// (package model's RandomWalkModel). A deployment wanting a different model
// links its own command against package engine with its own Binding.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/karurochori/simkernel/engine"
	"github.com/karurochori/simkernel/engine/config"
	"github.com/karurochori/simkernel/model"
)

type endCondition struct {
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

func randomWalkBinding() engine.Binding[model.Vector, model.RandomWalkState, model.Vector] {
	return engine.Binding[model.Vector, model.RandomWalkState, model.Vector]{
		DecodeModel: func(modelDoc, _ json.RawMessage) (model.Model[model.Vector, model.RandomWalkState, model.Vector], error) {
			var cfg model.RandomWalkConfig
			if len(modelDoc) > 0 {
				if err := json.Unmarshal(modelDoc, &cfg); err != nil {
					return model.Model[model.Vector, model.RandomWalkState, model.Vector]{}, fmt.Errorf("model: %w", err)
				}
			}
			return model.RandomWalkModel(cfg), nil
		},
		DecodeTerminate: func(raw json.RawMessage) (model.Terminate[model.Vector], error) {
			var ec endCondition
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &ec); err != nil {
					return nil, fmt.Errorf("end-condition: %w", err)
				}
			}
			if ec.Threshold > 0 {
				return model.NormThreshold(ec.Threshold), nil
			}
			return model.StepLimit(ec.Limit), nil
		},
		DecodeInitialState: func(raw json.RawMessage) (model.Vector, error) {
			if len(raw) == 0 {
				return model.Vector{}, nil
			}
			var v model.Vector
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("initial-state: %w", err)
			}
			return v, nil
		},
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	verbose := flag.Bool("verbose", false, "raise the logger to debug level")
	flag.Parse()

	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	if *verbose {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		slog.Error("reading configuration from stdin", "error", err)
		return 1
	}

	cfg, err := config.Load(data)
	if err != nil {
		slog.Error("loading configuration", "error", err)
		return 1
	}
	for _, w := range cfg.Warnings {
		slog.Warn(w)
	}

	if flag.NArg() >= 1 && flag.Arg(0) == "continue" {
		cfg.Continue = true
	}

	e, err := engine.New(cfg, randomWalkBinding())
	if err != nil {
		slog.Error("constructing engine", "error", err)
		return 1
	}

	go func() {
		<-ctx.Done()
		slog.Warn("interrupt received, waiting for in-flight tasks to finish")
	}()

	failures, err := e.Run(ctx)
	if err != nil {
		slog.Error("global callback failed", "error", err)
		return 1
	}
	if failures > 0 {
		slog.Warn("run completed with failures", "count", failures)
	}

	return 0
}
