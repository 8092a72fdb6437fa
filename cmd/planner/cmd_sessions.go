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
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions (requires storage.enabled)",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := st.openService()
			if err != nil {
				return err
			}
			defer done()

			resp, err := svc.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if st.jsonOut {
				return st.printJSON(resp)
			}
			rows := make([][]string, len(resp.Sessions))
			for i, m := range resp.Sessions {
				rows[i] = []string{
					m.ID, string(m.Kind), m.Task, m.Status, fmt.Sprint(m.Count),
					m.CreatedAt.Format(time.RFC3339),
				}
			}
			st.printer.Table([]string{"id", "kind", "task", "status", "count", "created"}, rows)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "Maximum number of sessions (0 lists all)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := st.openService()
			if err != nil {
				return err
			}
			defer done()

			resp, err := svc.Session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if st.jsonOut {
				return st.printJSON(resp)
			}
			switch {
			case resp.Solution != nil:
				st.printer.Solution(resp.Solution)
			case resp.Enumeration != nil:
				st.printer.Enumeration(resp.Enumeration)
			default:
				st.printer.Field("source", resp.Meta.Source)
				st.printer.Samples(resp.Samples, 0)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := st.openService()
			if err != nil {
				return err
			}
			defer done()

			if err := svc.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			st.printer.Success("deleted " + args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}
