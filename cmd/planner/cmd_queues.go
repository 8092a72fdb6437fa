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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlanner/services/planner"
)

func newQueuesCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "List priority queues, algorithms and heuristics",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			resp := planner.NewService(st.cfg, nil, nil, st.logger).Queues()
			if st.jsonOut {
				return st.printJSON(resp)
			}
			rows := make([][]string, len(resp.Queues))
			for i, q := range resp.Queues {
				rows[i] = []string{q.Name, fmt.Sprint(q.SupportsUpdate), fmt.Sprint(q.MonotoneOnly)}
			}
			st.printer.Table([]string{"queue", "decrease-key", "monotone only"}, rows)
			st.printer.Field("algorithms", strings.Join(resp.Algorithms, ", "))
			st.printer.Field("heuristics", strings.Join(resp.Heuristics, ", "))
			return nil
		},
	}
}
