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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AleutianAI/kequality/services/kingdom/ingest"
	"github.com/spf13/cobra"
)

var (
	solveInput   string
	solveOutput  string
	solveExplain bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Answer every query in an input file",
	Long: `Read a kingdom followed by its queries and print one answer per line.

Input format (whitespace separated):
  N                 city count
  a b status        N-1 roads, status 1 = open
  Q                 query count
  k c1 ... ck       Q queries

With --explain each line also carries the meeting city, the steps traveled,
the excluded neighbours and the rejection reason, tab separated.

Examples:
  kequality solve --input kingdom.txt
  kequality solve < kingdom.txt > answers.txt
  kequality solve --input kingdom.txt --explain`,
	Args: cobra.NoArgs,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVarP(&solveInput, "input", "i", "",
		"Input file (default stdin)")
	solveCmd.Flags().StringVarP(&solveOutput, "output", "o", "",
		"Output file (default stdout)")
	solveCmd.Flags().BoolVar(&solveExplain, "explain", false,
		"Print meeting point details with each answer")
}

func runSolve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	start := time.Now()

	in, err := openInput(cmd, solveInput)
	if err != nil {
		return err
	}
	defer in.Close()

	input, err := ingest.NewDecoder(in, appConfig.Limits.IngestLimits()).Decode()
	if err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	forest, err := buildKingdom(ctx, input.Kingdom)
	if err != nil {
		return fmt.Errorf("build kingdom: %w", err)
	}
	resolver, err := newResolver(forest)
	if err != nil {
		return err
	}

	verdicts, err := resolver.ExplainBatch(ctx, input.Queries, workerCount())
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if solveOutput != "" && solveOutput != "-" {
		f, err := os.Create(solveOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := ingest.NewAnswerWriter(out)
	for _, v := range verdicts {
		if solveExplain {
			err = w.WriteVerdict(v)
		} else {
			err = w.WriteAnswer(v.Answer)
		}
		if err != nil {
			return fmt.Errorf("write answers: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write answers: %w", err)
	}

	stats := resolver.CacheStats()
	appLogger.Info("Queries answered",
		"queries", len(verdicts),
		"cities", forest.CityCount(),
		"cache_hits", stats.Hits,
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
