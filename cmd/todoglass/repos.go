// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	reposCmd := &cobra.Command{
		Use:   "repos",
		Short: "List the repositories that can hold the todo list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			snap := a.session.Snapshot()
			if !snap.SignedIn() {
				return errNotSignedIn
			}
			for _, r := range snap.Repositories {
				mark := " "
				if snap.Selected != nil && snap.Selected.FullName == r.FullName {
					mark = "*"
				}
				visibility := "public"
				if r.Private {
					visibility = "private"
				}
				fmt.Printf("%s %-40s %-8s %s\n", mark, r.FullName, visibility, strings.TrimSpace(r.Description))
			}
			return nil
		},
	}

	selectCmd := &cobra.Command{
		Use:     "select OWNER/NAME",
		Short:   "Select the repository holding the todo list",
		Example: "  todoglass select octocat/todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			if !a.session.Snapshot().SignedIn() {
				return errNotSignedIn
			}
			if err := a.session.SelectRepositoryByName(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Selected repository: %s\n", a.session.Snapshot().Selected.FullName)
			return nil
		},
	}
	rootCmd.AddCommand(reposCmd, selectCmd)
}
