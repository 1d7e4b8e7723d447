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

	"github.com/AleutianAI/kequality/services/kingdom"
	"github.com/AleutianAI/kequality/services/kingdom/ingest"
	"github.com/spf13/cobra"
)

var statsInput string

// statsReport is the JSON printed by `kequality stats`.
type statsReport struct {
	Roads       int                 `json:"roads"`
	ClosedRoads int                 `json:"closed_roads"`
	Forest      kingdom.ForestStats `json:"forest"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics about a kingdom",
	Long: `Build the kingdom from an input file and print its shape as JSON:
road counts, tree count, largest tree and maximum depth.

Examples:
  kequality stats --input kingdom.txt`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsInput, "input", "i", "",
		"Kingdom file (default stdin)")
}

func runStats(cmd *cobra.Command, _ []string) error {
	in, err := openInput(cmd, statsInput)
	if err != nil {
		return err
	}
	defer in.Close()

	k, err := ingest.NewDecoder(in, appConfig.Limits.IngestLimits()).DecodeKingdom()
	if err != nil {
		return fmt.Errorf("decode kingdom: %w", err)
	}
	forest, err := buildKingdom(cmd.Context(), k)
	if err != nil {
		return fmt.Errorf("build kingdom: %w", err)
	}

	open := k.OpenRoads()
	report := statsReport{
		Roads:       len(k.Roads),
		ClosedRoads: len(k.Roads) - open,
		Forest:      forest.Stats(),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
