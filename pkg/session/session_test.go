// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mattermost/todoglass/pkg/autosave"
	"github.com/mattermost/todoglass/pkg/github"
	"github.com/mattermost/todoglass/pkg/store"
	"github.com/mattermost/todoglass/pkg/store/backends"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeAPI serves one user with one repository holding two issues, one
// of them assigned to the user
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	requests  []recordedRequest
	failAll   bool
	failPatch bool

	// When set, PATCH closes patchStarted and waits for patchGate
	patchStarted chan struct{}
	patchGate    chan struct{}
}

var (
	testUser = map[string]interface{}{"id": 1, "login": "octocat"}
	testRepo = map[string]interface{}{
		"id": 10, "name": "todo", "full_name": "octocat/todo",
		"owner": map[string]interface{}{"login": "octocat"},
	}
	assignedIssue = map[string]interface{}{
		"id": 700, "number": 7, "title": "Buy milk", "state": "open",
		"body":      "Due: 2024-03-01\n\nBuy milk",
		"html_url":  "https://github.com/octocat/todo/issues/7",
		"assignees": []interface{}{testUser},
		"labels":    []interface{}{map[string]interface{}{"id": 5, "name": "home"}},
		"milestone": map[string]interface{}{"id": 20, "number": 2, "title": "Groceries"},
	}
	otherIssue = map[string]interface{}{
		"id": 800, "number": 8, "title": "Fix the door", "state": "open",
	}
)

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		f.reply(w, http.StatusOK, testUser)
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		f.reply(w, http.StatusOK, []interface{}{testRepo})
	})
	mux.HandleFunc("/repos/octocat/todo/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			created := map[string]interface{}{"id": 900, "number": 9, "title": "New", "state": "open"}
			f.reply(w, http.StatusCreated, created)
			return
		}
		if r.URL.Query().Get("assignee") == "octocat" {
			f.reply(w, http.StatusOK, []interface{}{assignedIssue})
			return
		}
		f.mu.Lock()
		fail := f.failAll
		f.mu.Unlock()
		if fail {
			f.reply(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
			return
		}
		f.reply(w, http.StatusOK, []interface{}{assignedIssue, otherIssue})
	})
	mux.HandleFunc("/repos/octocat/todo/issues/7", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			f.mu.Lock()
			fail := f.failPatch
			started, gate := f.patchStarted, f.patchGate
			f.mu.Unlock()
			if gate != nil {
				close(started)
				<-gate
			}
			if fail {
				f.reply(w, http.StatusUnprocessableEntity, map[string]string{"message": "Validation Failed"})
				return
			}
			updated := map[string]interface{}{}
			require.NoError(t, json.Unmarshal([]byte(f.lastBody()), &updated))
			updated["id"] = 700
			updated["number"] = 7
			delete(updated, "assignees")
			delete(updated, "labels")
			delete(updated, "milestone")
			f.reply(w, http.StatusOK, updated)
			return
		}
		f.reply(w, http.StatusOK, assignedIssue)
	})
	mux.HandleFunc("/repos/octocat/todo/assignees", func(w http.ResponseWriter, r *http.Request) {
		f.reply(w, http.StatusOK, []interface{}{testUser})
	})
	mux.HandleFunc("/repos/octocat/todo/labels", func(w http.ResponseWriter, r *http.Request) {
		f.reply(w, http.StatusOK, []interface{}{map[string]interface{}{"id": 5, "name": "home"}})
	})
	mux.HandleFunc("/repos/octocat/todo/milestones", func(w http.ResponseWriter, r *http.Request) {
		f.reply(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body),
		})
		f.mu.Unlock()
		require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) reply(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(payload))
}

func (f *fakeAPI) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1].Body
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest{}, f.requests...)
}

func (f *fakeAPI) count(method, path string) int {
	n := 0
	for _, r := range f.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func testPreferences(t *testing.T) *store.Preferences {
	return store.NewPreferences(backends.URLPrefixFilesystem + t.TempDir())
}

func (f *fakeAPI) session(prefs Preferences) *Session {
	return NewWithOptions(prefs, &Options{
		NewClient: func(token string) *github.GitHub {
			return github.NewWithOptions(&github.Options{Token: token, APIURL: f.server.URL})
		},
		Autosave: &autosave.Options{Debounce: time.Hour},
	})
}

func TestBootstrapSignedOut(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	require.NoError(t, s.Bootstrap(context.Background()))
	snap := s.Snapshot()
	require.False(t, snap.SignedIn())
	require.Empty(t, f.recorded())
}

func TestSignInRestoresSelection(t *testing.T) {
	f := newFakeAPI(t)
	prefs := testPreferences(t)
	require.NoError(t, prefs.Set(store.KeySelectedRepo, "octocat/todo"))
	s := f.session(prefs)

	require.NoError(t, s.SignIn(context.Background(), testToken))

	snap := s.Snapshot()
	require.True(t, snap.SignedIn())
	require.Equal(t, "octocat", snap.User.Login)
	require.Len(t, snap.Repositories, 1)
	require.NotNil(t, snap.Selected)
	require.Equal(t, "octocat/todo", snap.Selected.FullName)
	require.Len(t, snap.MyIssues, 1)
	require.Len(t, snap.AllIssues, 2)
	require.False(t, snap.Loading)
	require.NoError(t, snap.Err)

	token, err := prefs.Get(store.KeyToken)
	require.NoError(t, err)
	require.Equal(t, testToken, token)

	// A new session picks up the stored credential
	restored := f.session(prefs)
	require.NoError(t, restored.Bootstrap(context.Background()))
	require.Equal(t, "octocat/todo", restored.Snapshot().Selected.FullName)
}

func TestBootstrapWithConfiguredToken(t *testing.T) {
	f := newFakeAPI(t)
	prefs := testPreferences(t)
	s := f.session(prefs)
	s.opts.Token = testToken

	require.NoError(t, s.Bootstrap(context.Background()))
	require.True(t, s.Snapshot().SignedIn())

	token, err := prefs.Get(store.KeyToken)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestRestoreMissingSelection(t *testing.T) {
	f := newFakeAPI(t)
	prefs := testPreferences(t)
	require.NoError(t, prefs.Set(store.KeySelectedRepo, "someone/gone"))
	s := f.session(prefs)

	require.NoError(t, s.SignIn(context.Background(), testToken))
	require.Nil(t, s.Snapshot().Selected)
	require.Zero(t, f.count(http.MethodGet, "/repos/octocat/todo/issues"))
}

func TestSignInEmptyToken(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	err := s.SignIn(context.Background(), "  ")
	require.True(t, github.IsValidation(err))
	require.Equal(t, err, s.Err())
	require.Empty(t, f.recorded())
}

func TestPreconditions(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	ctx := context.Background()

	err := s.RefreshIssues(ctx, github.StateOpen)
	require.True(t, github.IsPrecondition(err))

	require.NoError(t, s.SignIn(ctx, testToken))
	err = s.RefreshIssues(ctx, github.StateOpen)
	require.True(t, github.IsPrecondition(err))

	_, err = s.CreateIssue(ctx, "Title", "", nil)
	require.True(t, github.IsPrecondition(err))
	require.Error(t, s.Err())

	s.DismissError()
	require.NoError(t, s.Err())
}

func TestSelectRepositoryByName(t *testing.T) {
	f := newFakeAPI(t)
	prefs := testPreferences(t)
	s := f.session(prefs)
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, testToken))

	err := s.SelectRepositoryByName(ctx, "octocat/other")
	require.True(t, github.IsValidation(err))

	require.NoError(t, s.SelectRepositoryByName(ctx, "Octocat/Todo"))
	require.Equal(t, "octocat/todo", s.Snapshot().Selected.FullName)

	name, err := prefs.Get(store.KeySelectedRepo)
	require.NoError(t, err)
	require.Equal(t, "octocat/todo", name)
}

func TestRefreshIssuesPartialFailure(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, testToken))
	require.NoError(t, s.SelectRepositoryByName(ctx, "octocat/todo"))

	f.mu.Lock()
	f.failAll = true
	f.mu.Unlock()

	err := s.RefreshIssues(ctx, github.StateAll)
	require.Error(t, err)
	require.True(t, github.IsTransport(err))

	snap := s.Snapshot()
	require.Len(t, snap.MyIssues, 1)
	require.Empty(t, snap.AllIssues)
	require.Equal(t, github.StateAll, snap.IssueState)
	require.Error(t, snap.Err)
	require.False(t, snap.Loading)
}

func TestRefreshIssuesQueries(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, testToken))
	require.NoError(t, s.SelectRepositoryByName(ctx, "octocat/todo"))
	require.NoError(t, s.RefreshIssues(ctx, github.StateClosed))

	queries := []string{}
	for _, r := range f.recorded() {
		if r.Path == "/repos/octocat/todo/issues" {
			queries = append(queries, r.Query)
		}
	}
	require.ElementsMatch(t, []string{
		"assignee=octocat&per_page=100&state=closed",
		"per_page=100&state=closed",
	}, queries)
}

func TestSignOut(t *testing.T) {
	f := newFakeAPI(t)
	prefs := testPreferences(t)
	require.NoError(t, prefs.Set(store.KeySelectedRepo, "octocat/todo"))
	s := f.session(prefs)
	require.NoError(t, s.SignIn(context.Background(), testToken))

	require.NoError(t, s.SignOut())
	snap := s.Snapshot()
	require.False(t, snap.SignedIn())
	require.Nil(t, snap.Selected)
	require.Empty(t, snap.Repositories)
	require.Empty(t, snap.MyIssues)
	require.Empty(t, snap.AllIssues)

	for _, key := range []string{store.KeyToken, store.KeySelectedRepo} {
		v, err := prefs.Get(key)
		require.NoError(t, err)
		require.Empty(t, v)
	}
	_, err := s.Client()
	require.True(t, github.IsPrecondition(err))
}

func TestCreateIssue(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, testToken))
	require.NoError(t, s.SelectRepositoryByName(ctx, "octocat/todo"))

	_, err := s.CreateIssue(ctx, "   ", "text", nil)
	require.True(t, github.IsValidation(err))

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	issue, err := s.CreateIssue(ctx, " Buy milk ", "  Whole milk  ", &due)
	require.NoError(t, err)
	require.Equal(t, 9, issue.Number)

	var create recordedRequest
	for _, r := range f.recorded() {
		if r.Method == http.MethodPost {
			create = r
		}
	}
	require.JSONEq(t, `{
		"title": "Buy milk",
		"body": "Due: 2024-03-01\n\nWhole milk",
		"assignees": ["octocat"]
	}`, create.Body)

	// The lists are refreshed after the creation
	require.Equal(t, 2, f.count(http.MethodGet, "/repos/octocat/todo/issues"))
}

func TestSubscribe(t *testing.T) {
	f := newFakeAPI(t)
	s := f.session(testPreferences(t))

	var mu sync.Mutex
	snaps := []Snapshot{}
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, snap)
	})
	require.NoError(t, s.SignIn(context.Background(), testToken))

	mu.Lock()
	n := len(snaps)
	require.NotZero(t, n)
	require.True(t, snaps[0].Loading)
	require.True(t, snaps[n-1].SignedIn())
	require.False(t, snaps[n-1].Loading)
	mu.Unlock()

	unsubscribe()
	s.DismissError()
	mu.Lock()
	require.Len(t, snaps, n)
	mu.Unlock()
}

func TestNewWithOptionsKeepsCallerOptions(t *testing.T) {
	opts := &Options{Token: "configured"}
	s := NewWithOptions(testPreferences(t), opts)
	require.Nil(t, opts.NewClient)
	require.NotNil(t, s.opts.NewClient)
	require.Equal(t, "configured", s.opts.Token)
}
