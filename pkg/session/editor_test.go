// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/mattermost/todoglass/pkg/autosave"
	"github.com/mattermost/todoglass/pkg/github"
	"github.com/stretchr/testify/require"
)

const issuePath = "/repos/octocat/todo/issues/7"

func openEditor(t *testing.T) (*fakeAPI, *Session, *Editor) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, testToken))
	require.NoError(t, s.SelectRepositoryByName(ctx, "octocat/todo"))
	e, err := s.OpenIssueNumber(ctx, 7)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return f, s, e
}

func TestFieldsFromIssue(t *testing.T) {
	_, _, e := openEditor(t)
	fields := e.Fields()
	require.Equal(t, "Buy milk", fields.Title)
	require.Equal(t, "Buy milk", fields.Text)
	require.NotNil(t, fields.DueDate)
	require.Equal(t, "2024-03-01", fields.DueDate.Format("2006-01-02"))
	require.Equal(t, "open", fields.State)
	require.Equal(t, []string{"octocat"}, fields.Assignees)
	require.Equal(t, []string{"home"}, fields.Labels)
	require.Equal(t, 2, fields.Milestone)
}

func TestUpdateRequest(t *testing.T) {
	req := UpdateRequest(autosave.Fields{Title: "  Chores ", State: "closed"})
	require.Equal(t, "Chores", req.Title)
	require.Nil(t, req.Body)
	require.Nil(t, req.Milestone)
	require.NotNil(t, req.Assignees)
	require.Empty(t, req.Assignees)

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	req = UpdateRequest(autosave.Fields{Title: "Chores", Text: "Sweep", DueDate: &due, Milestone: 3})
	require.NotNil(t, req.Body)
	require.Equal(t, "Due: 2024-03-01\n\nSweep", *req.Body)
	require.Equal(t, 3, *req.Milestone)
}

func TestEditorNoOpFlush(t *testing.T) {
	f, _, e := openEditor(t)
	require.NoError(t, e.Flush())
	require.Zero(t, f.count(http.MethodPatch, issuePath))
}

func TestEditorSavesFullReplace(t *testing.T) {
	f, s, e := openEditor(t)
	gets := f.count(http.MethodGet, "/repos/octocat/todo/issues")

	e.Edit(func(fields *autosave.Fields) {
		fields.Title = "Buy oat milk"
		fields.Milestone = 0
		fields.Labels = nil
	})
	require.Equal(t, autosave.PendingSave, e.Status().State)
	require.NoError(t, e.Flush())

	require.Equal(t, 1, f.count(http.MethodPatch, issuePath))
	var patch recordedRequest
	for _, r := range f.recorded() {
		if r.Method == http.MethodPatch {
			patch = r
		}
	}
	require.JSONEq(t, `{
		"title": "Buy oat milk",
		"body": "Due: 2024-03-01\n\nBuy milk",
		"state": "open",
		"assignees": ["octocat"],
		"labels": [],
		"milestone": null
	}`, patch.Body)

	require.Equal(t, "Buy oat milk", e.Issue().Title)
	require.True(t, e.Status().Saved)
	// Both issue lists are read again after saving
	require.Equal(t, gets+2, f.count(http.MethodGet, "/repos/octocat/todo/issues"))
	require.NoError(t, s.Err())

	// Nothing changed since, nothing to write
	require.NoError(t, e.Flush())
	require.Equal(t, 1, f.count(http.MethodPatch, issuePath))
}

func TestEditorSaveFailure(t *testing.T) {
	f, s, e := openEditor(t)
	f.mu.Lock()
	f.failPatch = true
	f.mu.Unlock()

	e.Edit(func(fields *autosave.Fields) { fields.Title = "" })
	err := e.Flush()
	require.Error(t, err)
	require.True(t, github.IsTransport(err))
	require.Error(t, s.Err())
	require.Error(t, e.Status().Err)

	// The next attempt retries the same change
	f.mu.Lock()
	f.failPatch = false
	f.mu.Unlock()
	require.NoError(t, e.Flush())
	require.Equal(t, 2, f.count(http.MethodPatch, issuePath))
}

func TestEditorClosed(t *testing.T) {
	f, _, e := openEditor(t)
	e.Edit(func(fields *autosave.Fields) { fields.Title = "Never saved" })
	e.Close()
	require.Error(t, e.Flush())
	require.Zero(t, f.count(http.MethodPatch, issuePath))
}

func TestEditorCloseDuringSave(t *testing.T) {
	f, _, e := openEditor(t)
	started, gate := make(chan struct{}), make(chan struct{})
	f.mu.Lock()
	f.patchStarted, f.patchGate = started, gate
	f.mu.Unlock()

	e.Edit(func(fields *autosave.Fields) { fields.Title = "Buy oat milk" })
	done := make(chan error, 1)
	go func() { done <- e.Flush() }()
	<-started
	gets := f.count(http.MethodGet, "/repos/octocat/todo/issues")

	e.Close()
	close(gate)
	require.NoError(t, <-done)

	require.Equal(t, 1, f.count(http.MethodPatch, issuePath))
	require.Equal(t, "Buy milk", e.Issue().Title)
	require.False(t, e.Status().Saved)
	require.Equal(t, gets, f.count(http.MethodGet, "/repos/octocat/todo/issues"))
}

func TestEditorRelationshipErrorsReachSession(t *testing.T) {
	f, s, e := openEditor(t)
	ctx := context.Background()

	// #42 does not exist, the lookup fails before any mutation
	_, err := e.AddBlockedBy(ctx, 42)
	require.Error(t, err)
	require.True(t, github.IsNotFound(err))
	require.Equal(t, err, s.Err())
	require.Zero(t, f.count(http.MethodPost, issuePath+"/dependencies/blocked_by"))

	s.DismissError()
	_, err = e.SetParent(ctx, 0)
	require.True(t, github.IsValidation(err))
	require.Equal(t, err, s.Err())

	s.DismissError()
	_, err = e.RemoveSubIssue(ctx, 900)
	require.Error(t, err)
	require.True(t, github.IsTransport(err))
	require.Equal(t, err, s.Err())
}

func TestEditorLoadOptions(t *testing.T) {
	_, s, e := openEditor(t)
	opts, err := e.LoadOptions(context.Background())
	require.Error(t, err)
	require.True(t, github.IsTransport(err))
	require.Equal(t, err, s.Err())

	// The lists that could be read are still returned
	require.Len(t, opts.Assignees, 1)
	require.Len(t, opts.Labels, 1)
	require.Empty(t, opts.Milestones)
}

func TestEditorRelationships(t *testing.T) {
	_, _, e := openEditor(t)
	rm := e.Relationships()
	require.Equal(t, "octocat", rm.Owner)
	require.Equal(t, "todo", rm.Repo)
	require.Equal(t, int64(700), rm.Issue.ID)
	require.Equal(t, 7, rm.Issue.Number)
}

func TestOpenIssuePreconditions(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	_, err := s.OpenIssue(context.Background(), &github.Issue{Number: 7})
	require.True(t, github.IsPrecondition(err))
}
