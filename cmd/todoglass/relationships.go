// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mattermost/todoglass/pkg/github"
	"github.com/mattermost/todoglass/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type parentOptions struct {
	clear bool
}

func init() {
	blockCmd := &cobra.Command{
		Use:     "block NUMBER BLOCKER",
		Short:   "Mark an issue as blocked by another one",
		Example: "  todoglass block 7 42",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelationships(cmd.Context(), args[0], args[1], func(ctx context.Context, e *session.Editor, n int) (*github.Relationships, error) {
				return e.AddBlockedBy(ctx, n)
			})
		},
	}

	unblockCmd := &cobra.Command{
		Use:   "unblock NUMBER BLOCKER",
		Short: "Remove a blocked-by link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelationships(cmd.Context(), args[0], args[1], func(ctx context.Context, e *session.Editor, n int) (*github.Relationships, error) {
				rels, err := e.LoadRelationships(ctx)
				if err != nil {
					return nil, err
				}
				ref := rels.FindBlockedBy(n)
				if ref == nil {
					return nil, errors.Errorf("#%d is not blocked by #%d", e.Issue().Number, n)
				}
				return e.RemoveBlockedBy(ctx, ref.ID)
			})
		},
	}

	pOpts := &parentOptions{}
	parentCmd := &cobra.Command{
		Use:   "parent NUMBER [PARENT]",
		Short: "Set or clear the parent of an issue",
		Example: `  todoglass parent 7 3
  todoglass parent 7 --clear`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pOpts.clear == (len(args) == 2) {
				return errors.New("give either a PARENT or --clear")
			}
			if pOpts.clear {
				return withRelationships(cmd.Context(), args[0], "", func(ctx context.Context, e *session.Editor, _ int) (*github.Relationships, error) {
					return e.ClearParent(ctx)
				})
			}
			return withRelationships(cmd.Context(), args[0], args[1], func(ctx context.Context, e *session.Editor, n int) (*github.Relationships, error) {
				return e.SetParent(ctx, n)
			})
		},
	}
	parentCmd.Flags().BoolVar(&pOpts.clear, "clear", false, "remove the current parent")

	subCmd := &cobra.Command{
		Use:   "sub",
		Short: "Manage the sub-issues of an issue",
	}
	subCmd.AddCommand(
		&cobra.Command{
			Use:   "add NUMBER CHILD",
			Short: "Add CHILD as a sub-issue of NUMBER",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRelationships(cmd.Context(), args[0], args[1], func(ctx context.Context, e *session.Editor, n int) (*github.Relationships, error) {
					return e.AddSubIssue(ctx, n)
				})
			},
		},
		&cobra.Command{
			Use:   "rm NUMBER CHILD",
			Short: "Remove CHILD from the sub-issues of NUMBER",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRelationships(cmd.Context(), args[0], args[1], func(ctx context.Context, e *session.Editor, n int) (*github.Relationships, error) {
					rels, err := e.LoadRelationships(ctx)
					if err != nil {
						return nil, err
					}
					ref := rels.FindSubIssue(n)
					if ref == nil {
						return nil, errors.Errorf("#%d is not a sub-issue of #%d", n, e.Issue().Number)
					}
					return e.RemoveSubIssue(ctx, ref.ID)
				})
			},
		},
	)

	rootCmd.AddCommand(blockCmd, unblockCmd, parentCmd, subCmd)
}

// withRelationships opens issueArg and runs op with the number in
// otherArg, printing the reloaded relationships. otherArg may be empty.
func withRelationships(
	ctx context.Context, issueArg, otherArg string,
	op func(context.Context, *session.Editor, int) (*github.Relationships, error),
) error {
	numbers, err := parseIssueNumbers(issueArg)
	if err != nil {
		return err
	}
	other := 0
	if otherArg != "" {
		if other, err = github.ParseIssueNumber(otherArg); err != nil {
			return err
		}
	}
	a, err := appWithRepo(ctx)
	if err != nil {
		return err
	}
	e, err := a.session.OpenIssueNumber(ctx, numbers[0])
	if err != nil {
		return err
	}
	defer e.Close()

	rels, err := op(ctx, e, other)
	if err != nil {
		return err
	}
	printRelationships(e.Issue(), rels)
	return nil
}

func printRelationships(issue *github.Issue, rels *github.Relationships) {
	parent := "none"
	if rels.Parent != nil {
		parent = "#" + strconv.Itoa(rels.Parent.Number)
	}
	fmt.Printf("#%d %s\nParent: %s\n", issue.Number, issue.Title, parent)
	printRefs("Blocked by", rels.BlockedBy)
	printRefs("Sub-issues", rels.SubIssues)
}
