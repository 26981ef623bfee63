// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package session

import (
	"context"
	"strings"
	"sync"

	"github.com/mattermost/todoglass/pkg/autosave"
	"github.com/mattermost/todoglass/pkg/github"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EditOptions are the choices offered while editing an issue
type EditOptions struct {
	Assignees  []*github.User
	Labels     []*github.Label
	Milestones []*github.Milestone
}

// Editor is the edit session of one issue. Field changes are saved by an
// autosave reconciler; relationships are edited through Relationships().
type Editor struct {
	session *Session
	client  *github.GitHub
	repo    *github.Repository

	mu     sync.Mutex
	issue  *github.Issue
	closed bool

	reconciler    *autosave.Reconciler
	relationships *github.RelationshipManager
}

// FieldsFromIssue returns the editable fields of issue
func FieldsFromIssue(issue *github.Issue) autosave.Fields {
	return autosave.Fields{
		Title:     issue.Title,
		Text:      issue.CleanBody(),
		DueDate:   issue.DueDate(),
		State:     issue.State,
		Assignees: issue.AssigneeLogins(),
		Labels:    issue.LabelNames(),
		Milestone: issue.MilestoneNumber(),
	}
}

// UpdateRequest converts fields into a full replacement of the issue
func UpdateRequest(fields autosave.Fields) *github.IssueUpdateRequest {
	req := &github.IssueUpdateRequest{
		Title:     strings.TrimSpace(fields.Title),
		State:     fields.State,
		Assignees: append([]string{}, fields.Assignees...),
		Labels:    append([]string{}, fields.Labels...),
	}
	if body := fields.ComposedBody(); body != "" {
		req.Body = &body
	}
	if fields.Milestone != 0 {
		m := fields.Milestone
		req.Milestone = &m
	}
	return req
}

// OpenIssue starts an edit session for issue in the selected repository.
// The editor must be closed when the user leaves the issue.
func (s *Session) OpenIssue(ctx context.Context, issue *github.Issue) (*Editor, error) {
	client, repo, err := s.clientAndRepo()
	if err != nil {
		return nil, s.fail(err)
	}
	if issue == nil {
		return nil, s.fail(&github.ValidationError{Field: "issue", Msg: "no issue given"})
	}
	e := &Editor{
		session:       s,
		client:        client,
		repo:          repo,
		issue:         issue,
		relationships: client.Relationships(repo.Owner, repo.Name, issue.Ref()),
	}

	opts := &autosave.Options{}
	if s.opts.Autosave != nil {
		*opts = *s.opts.Autosave
	}
	onChange := opts.OnChange
	opts.OnError = s.ReportError
	opts.OnChange = func(st autosave.Status) {
		logrus.Debugf("Issue #%d autosave is %s", issue.Number, st.State)
		if onChange != nil {
			onChange(st)
		}
	}
	e.reconciler = autosave.NewWithOptions(ctx, autosave.SaverFunc(e.save), FieldsFromIssue(issue), opts)
	return e, nil
}

// OpenIssueNumber fetches an issue and starts an edit session for it
func (s *Session) OpenIssueNumber(ctx context.Context, number int) (*Editor, error) {
	issue, err := s.GetIssue(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.OpenIssue(ctx, issue)
}

// save sends the fields to the server and refreshes the session lists
func (e *Editor) save(ctx context.Context, fields autosave.Fields) error {
	number := e.Issue().Number
	updated, err := e.client.UpdateIssue(ctx, e.repo.Owner, e.repo.Name, number, UpdateRequest(fields))
	if err != nil {
		return errors.Wrapf(err, "saving issue #%d", number)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		logrus.Debugf("Issue #%d was closed while saving, dropping the result", number)
		return nil
	}
	e.issue = updated
	e.mu.Unlock()
	logrus.Debugf("Issue #%d saved, refreshing issue lists", number)

	// A failed refresh is reported by the session but the save stands
	_ = e.session.RefreshIssues(ctx, e.session.CurrentIssueState())
	return nil
}

// Issue returns the issue as last read from the server
func (e *Editor) Issue() *github.Issue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issue
}

// Fields returns the current edited fields
func (e *Editor) Fields() autosave.Fields {
	return e.reconciler.Fields()
}

// Edit applies fn to the fields and schedules an autosave
func (e *Editor) Edit(fn func(*autosave.Fields)) {
	e.reconciler.Edit(fn)
}

// Status returns the autosave status
func (e *Editor) Status() autosave.Status {
	return e.reconciler.Status()
}

// Flush saves pending changes immediately
func (e *Editor) Flush() error {
	_, err := e.reconciler.Flush()
	return err
}

// Close ends the edit session, dropping unsaved changes. A save already
// in flight completes but its result is not applied.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.reconciler.Close()
}

// Relationships returns the manager for the links of the edited issue
func (e *Editor) Relationships() *github.RelationshipManager {
	return e.relationships
}

// relationshipResult publishes err on the session error surface
func (e *Editor) relationshipResult(rels *github.Relationships, err error) (*github.Relationships, error) {
	if err != nil {
		return rels, e.session.fail(err)
	}
	return rels, nil
}

// AddBlockedBy marks the issue as blocked by issue number
func (e *Editor) AddBlockedBy(ctx context.Context, number int) (*github.Relationships, error) {
	return e.relationshipResult(e.relationships.AddBlockedBy(ctx, number))
}

func (e *Editor) RemoveBlockedBy(ctx context.Context, blockerID int64) (*github.Relationships, error) {
	return e.relationshipResult(e.relationships.RemoveBlockedBy(ctx, blockerID))
}

// AddSubIssue makes issue number a child of the edited issue
func (e *Editor) AddSubIssue(ctx context.Context, number int) (*github.Relationships, error) {
	return e.relationshipResult(e.relationships.AddSubIssue(ctx, number))
}

func (e *Editor) RemoveSubIssue(ctx context.Context, childID int64) (*github.Relationships, error) {
	return e.relationshipResult(e.relationships.RemoveSubIssue(ctx, childID))
}

// SetParent makes the edited issue a sub-issue of issue number
func (e *Editor) SetParent(ctx context.Context, number int) (*github.Relationships, error) {
	return e.relationshipResult(e.relationships.SetParent(ctx, number))
}

// ClearParent detaches the edited issue from its parent, if any
func (e *Editor) ClearParent(ctx context.Context) (*github.Relationships, error) {
	return e.relationshipResult(e.relationships.ClearParent(ctx))
}

// LoadRelationships reads blocked-by, parent and sub-issues
func (e *Editor) LoadRelationships(ctx context.Context) (*github.Relationships, error) {
	return e.relationshipResult(e.relationships.Load(ctx))
}

// LoadOptions fetches the assignees, labels and milestones available in
// the repository. The three lists are fetched concurrently and each one
// is kept even if another fails.
func (e *Editor) LoadOptions(ctx context.Context) (*EditOptions, error) {
	opts := &EditOptions{}
	var g errgroup.Group
	g.Go(func() error {
		users, err := e.client.ListAssignees(ctx, e.repo.Owner, e.repo.Name)
		if err != nil {
			return errors.Wrap(err, "listing assignees")
		}
		opts.Assignees = users
		return nil
	})
	g.Go(func() error {
		labels, err := e.client.ListLabels(ctx, e.repo.Owner, e.repo.Name)
		if err != nil {
			return errors.Wrap(err, "listing labels")
		}
		opts.Labels = labels
		return nil
	})
	g.Go(func() error {
		milestones, err := e.client.ListMilestones(ctx, e.repo.Owner, e.repo.Name)
		if err != nil {
			return errors.Wrap(err, "listing milestones")
		}
		opts.Milestones = milestones
		return nil
	})
	if err := g.Wait(); err != nil {
		return opts, e.session.fail(err)
	}
	return opts, nil
}
