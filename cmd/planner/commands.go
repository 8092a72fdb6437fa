// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AleutianAI/AleutianPlanner/pkg/ux"
	"github.com/AleutianAI/AleutianPlanner/services/planner"
	"github.com/AleutianAI/AleutianPlanner/services/planner/config"
	"github.com/AleutianAI/AleutianPlanner/services/planner/storage/badger"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
	"github.com/AleutianAI/AleutianPlanner/services/planner/telemetry"
)

// cliState is shared by every command of one root.
type cliState struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
	jsonOut    bool

	out    io.Writer
	errOut io.Writer

	cfg     config.Config
	logger  *slog.Logger
	printer *ux.Printer
}

// newRootCmd builds the command tree writing to out and errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	st := &cliState{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "planner",
		Short: "Heuristic search over grounded planning tasks",
		Long: `planner solves grounded SAS+ style tasks with best-first search,
enumerates goal distances backward, and draws distance samples. It also
serves the same operations over HTTP.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: st.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&st.configPath, "config", os.Getenv("PLANNER_CONFIG"), "Path to a YAML or JSON config file")
	pf.StringVar(&st.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.StringVar(&st.logFormat, "log-format", "", "Log format override (text, json)")
	pf.StringVar(&st.output, "output", "", "Output style (rich, minimal, machine); detected from the terminal when empty")
	pf.BoolVar(&st.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(
		newSolveCmd(st),
		newEnumerateCmd(st),
		newSampleCmd(st),
		newBatchCmd(st),
		newServeCmd(st),
		newQueuesCmd(st),
		newSessionsCmd(st),
	)
	return root
}

// setup loads configuration and builds the logger and printer.
func (st *cliState) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return err
	}
	if st.logLevel != "" {
		if _, err := telemetry.ParseLevel(st.logLevel); err != nil {
			return err
		}
		cfg.Log.Level = st.logLevel
	}
	if st.logFormat != "" {
		if _, err := telemetry.ParseFormat(st.logFormat); err != nil {
			return err
		}
		cfg.Log.Format = st.logFormat
	}
	st.cfg = cfg
	st.logger = telemetry.NewLogger(st.errOut, cfg.Log.Level, cfg.Log.Format)

	level := ux.ParseLevel(st.output)
	if st.output == "" {
		level = ux.LevelMachine
		if f, ok := st.out.(*os.File); ok {
			level = ux.DetectLevel(f)
		}
	}
	st.printer = ux.NewPrinter(st.out, st.errOut, level)
	return nil
}

// openService creates an in-process service. The store is opened when
// storage is enabled; the returned func closes it.
func (st *cliState) openService() (*planner.Service, func(), error) {
	if !st.cfg.Storage.Enabled {
		return planner.NewService(st.cfg, nil, nil, st.logger), func() {}, nil
	}
	dbCfg := st.cfg.Storage.Badger
	dbCfg.Logger = st.logger
	db, err := badger.Open(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open result store: %w", err)
	}
	store, err := badger.NewResultStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			st.logger.Warn("Failed to close result store", "error", err)
		}
	}
	return planner.NewService(st.cfg, store, nil, st.logger), closeFn, nil
}

func (st *cliState) printJSON(v any) error {
	enc := json.NewEncoder(st.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadDocument reads a task file into its serialisable form.
func loadDocument(path string) (task.Document, error) {
	t, err := task.Load(path)
	if err != nil {
		return task.Document{}, err
	}
	return t.ToDocument(), nil
}

// parseState parses "1,0,-1" into a state. Empty input yields nil.
func parseState(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("state value %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// limitFlags binds session limit flags with the given name prefix.
type limitFlags struct {
	timeLimit time.Duration
	maxNodes  int
	queue     string
}

func (l *limitFlags) register(f *pflag.FlagSet, prefix, what string) {
	f.DurationVar(&l.timeLimit, prefix+"time-limit", 0, "Wall-clock limit of the "+what+" (0 uses the config)")
	f.IntVar(&l.maxNodes, prefix+"max-nodes", 0, "Open plus closed state ceiling of the "+what+" (0 uses the config)")
	f.StringVar(&l.queue, prefix+"queue", "", "Priority queue of the "+what+" (see 'planner queues')")
}

func (l *limitFlags) limits() planner.Limits {
	return planner.Limits{
		TimeLimitMS: l.timeLimit.Milliseconds(),
		MaxNodes:    l.maxNodes,
		Queue:       l.queue,
	}
}
