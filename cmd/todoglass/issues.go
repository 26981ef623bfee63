// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mattermost/todoglass/pkg/autosave"
	"github.com/mattermost/todoglass/pkg/github"
	"github.com/mattermost/todoglass/pkg/issuebody"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type issuesOptions struct {
	state string
	mine  bool
}

type newOptions struct {
	body string
	due  string
}

type editOptions struct {
	title     string
	body      string
	due       string
	state     string
	assignees []string
	labels    []string
	milestone int
}

func init() {
	lsOpts := &issuesOptions{}
	issuesCmd := &cobra.Command{
		Use:   "issues",
		Short: "List the issues of the selected repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssues(cmd.Context(), lsOpts)
		},
	}
	issuesCmd.Flags().StringVar(&lsOpts.state, "state", github.StateOpen, "issue state: open, closed or all")
	issuesCmd.Flags().BoolVar(&lsOpts.mine, "mine", false, "only list issues assigned to me")

	showCmd := &cobra.Command{
		Use:   "show NUMBER",
		Short: "Show an issue and its relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), args[0])
		},
	}

	nOpts := &newOptions{}
	newCmd := &cobra.Command{
		Use:     "new TITLE",
		Short:   "Create an issue assigned to me",
		Example: `  todoglass new "Buy milk" --due 2024-03-01 --body "Oat milk"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd.Context(), args[0], nOpts)
		},
	}
	newCmd.Flags().StringVar(&nOpts.body, "body", "", "issue text")
	newCmd.Flags().StringVar(&nOpts.due, "due", "", "due date as YYYY-MM-DD")

	eOpts := &editOptions{}
	editCmd := &cobra.Command{
		Use:   "edit NUMBER",
		Short: "Edit the fields of an issue",
		Long: `Edits the fields of an issue. Only the flags given are changed; the
issue is saved once with all of them.`,
		Example: `  todoglass edit 7 --due none --state closed`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, args[0], eOpts)
		},
	}
	editCmd.Flags().StringVar(&eOpts.title, "title", "", "new title")
	editCmd.Flags().StringVar(&eOpts.body, "body", "", "new issue text")
	editCmd.Flags().StringVar(&eOpts.due, "due", "", `due date as YYYY-MM-DD, or "none" to clear it`)
	editCmd.Flags().StringVar(&eOpts.state, "state", "", "open or closed")
	editCmd.Flags().StringSliceVar(&eOpts.assignees, "assignee", nil, "assignee logins, replacing the current ones")
	editCmd.Flags().StringSliceVar(&eOpts.labels, "label", nil, "label names, replacing the current ones")
	editCmd.Flags().IntVar(&eOpts.milestone, "milestone", 0, "milestone number, 0 clears it")

	rootCmd.AddCommand(issuesCmd, showCmd, newCmd, editCmd)
}

// appWithRepo returns a signed in app with a selected repository
func appWithRepo(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if !a.session.Snapshot().SignedIn() {
		return nil, errNotSignedIn
	}
	if err := a.requireRepo(); err != nil {
		return nil, err
	}
	return a, nil
}

func parseDue(value string) (*time.Time, error) {
	if value == "" || strings.EqualFold(value, "none") {
		return nil, nil
	}
	d, err := issuebody.ParseDate(value)
	if err != nil {
		return nil, &github.ValidationError{Field: "due date", Value: value, Msg: "expected YYYY-MM-DD"}
	}
	return &d, nil
}

func dueColumn(issue *github.Issue) string {
	if due := issue.DueDate(); due != nil {
		return issuebody.DisplayString(*due)
	}
	return ""
}

func runIssues(ctx context.Context, opts *issuesOptions) error {
	switch opts.state {
	case github.StateOpen, github.StateClosed, github.StateAll:
	default:
		return &github.ValidationError{Field: "state", Value: opts.state, Msg: "expected open, closed or all"}
	}
	a, err := appWithRepo(ctx)
	if err != nil {
		return err
	}
	if err := a.session.RefreshIssues(ctx, opts.state); err != nil {
		return err
	}
	snap := a.session.Snapshot()
	issues := snap.AllIssues
	if opts.mine {
		issues = snap.MyIssues
	}
	if len(issues) == 0 {
		fmt.Println("No issues found.")
		return nil
	}
	for _, issue := range issues {
		fmt.Printf("#%-5d %-7s %-7s %s\n", issue.Number, issue.State, dueColumn(issue), issue.Title)
	}
	return nil
}

func printRefs(title string, refs []*github.IssueRef) {
	if len(refs) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, ref := range refs {
		fmt.Printf("  #%-5d %s\n", ref.Number, ref.Title)
	}
}

func runShow(ctx context.Context, arg string) error {
	numbers, err := parseIssueNumbers(arg)
	if err != nil {
		return err
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

	issue := e.Issue()
	fmt.Printf("#%d %s [%s]\n", issue.Number, issue.Title, issue.State)
	fmt.Println(issue.URL)
	if due := dueColumn(issue); due != "" {
		fmt.Printf("Due: %s\n", due)
	}
	if logins := issue.AssigneeLogins(); len(logins) > 0 {
		fmt.Printf("Assignees: %s\n", strings.Join(logins, ", "))
	}
	if labels := issue.LabelNames(); len(labels) > 0 {
		fmt.Printf("Labels: %s\n", strings.Join(labels, ", "))
	}
	if issue.Milestone != nil {
		fmt.Printf("Milestone: %s (%d)\n", issue.Milestone.Title, issue.Milestone.Number)
	}
	if body := issue.CleanBody(); body != "" {
		fmt.Printf("\n%s\n\n", body)
	}

	rels, err := e.LoadRelationships(ctx)
	if err != nil {
		return err
	}
	if rels.Parent != nil {
		fmt.Printf("Parent: #%d %s\n", rels.Parent.Number, rels.Parent.Title)
	}
	printRefs("Blocked by", rels.BlockedBy)
	printRefs("Sub-issues", rels.SubIssues)
	return nil
}

func runNew(ctx context.Context, title string, opts *newOptions) error {
	due, err := parseDue(opts.due)
	if err != nil {
		return err
	}
	a, err := appWithRepo(ctx)
	if err != nil {
		return err
	}
	issue, err := a.session.CreateIssue(ctx, title, opts.body, due)
	if err != nil {
		return err
	}
	fmt.Printf("Created #%d %s\n", issue.Number, issue.URL)
	return nil
}

// editFields returns the field changes requested by the flags set on cmd
func editFields(cmd *cobra.Command, opts *editOptions) (func(*autosave.Fields), error) {
	flags := cmd.Flags()
	changes := []func(*autosave.Fields){}
	if flags.Changed("title") {
		if strings.TrimSpace(opts.title) == "" {
			return nil, &github.ValidationError{Field: "title", Value: opts.title, Msg: "title cannot be empty"}
		}
		changes = append(changes, func(f *autosave.Fields) { f.Title = opts.title })
	}
	if flags.Changed("body") {
		changes = append(changes, func(f *autosave.Fields) { f.Text = opts.body })
	}
	if flags.Changed("due") {
		due, err := parseDue(opts.due)
		if err != nil {
			return nil, err
		}
		changes = append(changes, func(f *autosave.Fields) { f.DueDate = due })
	}
	if flags.Changed("state") {
		if opts.state != github.StateOpen && opts.state != github.StateClosed {
			return nil, &github.ValidationError{Field: "state", Value: opts.state, Msg: "expected open or closed"}
		}
		changes = append(changes, func(f *autosave.Fields) { f.State = opts.state })
	}
	if flags.Changed("assignee") {
		changes = append(changes, func(f *autosave.Fields) { f.Assignees = opts.assignees })
	}
	if flags.Changed("label") {
		changes = append(changes, func(f *autosave.Fields) { f.Labels = opts.labels })
	}
	if flags.Changed("milestone") {
		if opts.milestone < 0 {
			return nil, &github.ValidationError{
				Field: "milestone", Value: fmt.Sprint(opts.milestone), Msg: "must be a milestone number or 0",
			}
		}
		changes = append(changes, func(f *autosave.Fields) { f.Milestone = opts.milestone })
	}
	if len(changes) == 0 {
		return nil, errors.New("nothing to edit, see todoglass edit --help")
	}
	return func(f *autosave.Fields) {
		for _, change := range changes {
			change(f)
		}
	}, nil
}

func runEdit(cmd *cobra.Command, arg string, opts *editOptions) error {
	ctx := cmd.Context()
	numbers, err := parseIssueNumbers(arg)
	if err != nil {
		return err
	}
	apply, err := editFields(cmd, opts)
	if err != nil {
		return err
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

	e.Edit(apply)
	if err := e.Flush(); err != nil {
		return err
	}
	if !e.Status().Saved {
		fmt.Printf("#%d unchanged\n", numbers[0])
		return nil
	}
	fmt.Printf("Saved #%d %s\n", numbers[0], e.Issue().Title)
	return nil
}
