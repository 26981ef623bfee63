// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mattermost/todoglass/pkg/autosave"
	"github.com/mattermost/todoglass/pkg/github"
	"github.com/mattermost/todoglass/pkg/issuebody"
	"github.com/mattermost/todoglass/pkg/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Preferences persists the credential and the selected repository
// between runs
type Preferences interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// ClientFactory builds an API client for a credential
type ClientFactory func(token string) *github.GitHub

type Options struct {
	NewClient ClientFactory
	Autosave  *autosave.Options
	// Token is used by Bootstrap when no credential has been persisted.
	// It is never written to the preferences.
	Token string
}

var defaultOptions = Options{
	NewClient: github.New,
}

// Snapshot is a copy of the published session state
type Snapshot struct {
	User         *github.User
	Repositories []*github.Repository
	Selected     *github.Repository
	MyIssues     []*github.Issue
	AllIssues    []*github.Issue
	IssueState   string
	Loading      bool
	Err          error
}

// SignedIn returns true when a user has been authenticated
func (s Snapshot) SignedIn() bool {
	return s.User != nil
}

// Session holds the state shared by every screen of the client
type Session struct {
	opts  *Options
	prefs Preferences

	mu         sync.Mutex
	token      string
	client     *github.GitHub
	user       *github.User
	repos      []*github.Repository
	selected   *github.Repository
	myIssues   []*github.Issue
	allIssues  []*github.Issue
	issueState string
	loading    int
	err        error

	observers    map[int]func(Snapshot)
	nextObserver int
}

// New returns a signed out session persisting to prefs
func New(prefs Preferences) *Session {
	opts := defaultOptions
	return NewWithOptions(prefs, &opts)
}

func NewWithOptions(prefs Preferences, opts *Options) *Session {
	o := defaultOptions
	if opts != nil {
		o = *opts
	}
	opts = &o
	if opts.NewClient == nil {
		opts.NewClient = defaultOptions.NewClient
	}
	return &Session{
		opts:       opts,
		prefs:      prefs,
		issueState: github.StateOpen,
		observers:  map[int]func(Snapshot){},
	}
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes the observer.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		User:         s.user,
		Repositories: append([]*github.Repository{}, s.repos...),
		Selected:     s.selected,
		MyIssues:     append([]*github.Issue{}, s.myIssues...),
		AllIssues:    append([]*github.Issue{}, s.allIssues...),
		IssueState:   s.issueState,
		Loading:      s.loading > 0,
		Err:          s.err,
	}
}

// update runs fn under the lock and notifies the observers afterwards
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()
	for _, o := range observers {
		o(snap)
	}
}

func (s *Session) beginLoading() func() {
	s.update(func() { s.loading++ })
	return func() { s.update(func() { s.loading-- }) }
}

// Err returns the error shown to the user, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// DismissError clears the error surface
func (s *Session) DismissError() {
	s.update(func() { s.err = nil })
}

// ReportError publishes err on the session error surface
func (s *Session) ReportError(err error) {
	if err == nil {
		return
	}
	logrus.Error(err)
	s.update(func() { s.err = err })
}

// fail reports err and returns it
func (s *Session) fail(err error) error {
	s.ReportError(err)
	return err
}

// Client returns the authenticated API client or a PreconditionError
func (s *Session) Client() (*github.GitHub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, &github.PreconditionError{Reason: "not signed in"}
	}
	return s.client, nil
}

// SelectedRepository returns the selected repository or a PreconditionError
func (s *Session) SelectedRepository() (*github.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil, &github.PreconditionError{Reason: "no repository selected"}
	}
	return s.selected, nil
}

func (s *Session) clientAndRepo() (*github.GitHub, *github.Repository, error) {
	client, err := s.Client()
	if err != nil {
		return nil, nil, err
	}
	repo, err := s.SelectedRepository()
	if err != nil {
		return nil, nil, err
	}
	return client, repo, nil
}

// Bootstrap restores the persisted credential and selection. Without a
// credential the session stays signed out.
func (s *Session) Bootstrap(ctx context.Context) error {
	token, err := s.prefs.Get(store.KeyToken)
	if err != nil {
		return s.fail(errors.Wrap(err, "reading stored credential"))
	}
	if token == "" {
		token = s.opts.Token
	}
	if token == "" {
		logrus.Info("No stored credential, session is signed out")
		return nil
	}
	return s.signIn(ctx, token, false)
}

// SignIn authenticates with token and persists it until SignOut
func (s *Session) SignIn(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.fail(&github.ValidationError{Field: "token", Value: token, Msg: "credential is empty"})
	}
	return s.signIn(ctx, token, true)
}

func (s *Session) signIn(ctx context.Context, token string, persist bool) error {
	done := s.beginLoading()
	defer done()

	client := s.opts.NewClient(token)
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return s.fail(errors.Wrap(err, "signing in"))
	}
	if persist {
		if err := s.prefs.Set(store.KeyToken, token); err != nil {
			return s.fail(errors.Wrap(err, "storing credential"))
		}
	}
	s.update(func() {
		s.token = token
		s.client = client
		s.user = user
	})
	logrus.Infof("Signed in as %s", user.Login)

	if err := s.LoadRepositories(ctx); err != nil {
		return err
	}
	if s.Snapshot().Selected != nil {
		return s.RefreshIssues(ctx, github.StateOpen)
	}
	return nil
}

// SignOut clears all in-memory state, the stored credential and the
// persisted repository selection
func (s *Session) SignOut() error {
	s.update(func() {
		s.token = ""
		s.client = nil
		s.user = nil
		s.repos = nil
		s.selected = nil
		s.myIssues = nil
		s.allIssues = nil
		s.issueState = github.StateOpen
		s.err = nil
	})
	if err := s.prefs.Delete(store.KeySelectedRepo); err != nil {
		return errors.Wrap(err, "deleting persisted repository")
	}
	if err := s.prefs.Delete(store.KeyToken); err != nil {
		return errors.Wrap(err, "deleting stored credential")
	}
	logrus.Info("Signed out")
	return nil
}

// LoadRepositories fetches the repository list and restores the
// persisted selection against it
func (s *Session) LoadRepositories(ctx context.Context) error {
	client, err := s.Client()
	if err != nil {
		return s.fail(err)
	}
	done := s.beginLoading()
	defer done()

	repos, err := client.ListRepositories(ctx)
	if err != nil {
		return s.fail(errors.Wrap(err, "loading repositories"))
	}
	s.update(func() { s.repos = repos })
	return s.restoreSelection(repos)
}

// restoreSelection matches the persisted full name against repos. When
// nothing matches the selection is cleared so a new one can be made.
func (s *Session) restoreSelection(repos []*github.Repository) error {
	fullName, err := s.prefs.Get(store.KeySelectedRepo)
	if err != nil {
		return s.fail(errors.Wrap(err, "reading persisted repository"))
	}
	if fullName == "" {
		return nil
	}
	repo := findRepository(repos, fullName)
	if repo == nil {
		logrus.Warnf("Persisted repository %s is no longer available, select another one", fullName)
	} else {
		logrus.Debugf("Restored repository selection %s", repo.FullName)
	}
	s.update(func() {
		if repo == nil || s.selected == nil || s.selected.FullName != repo.FullName {
			s.myIssues = nil
			s.allIssues = nil
		}
		s.selected = repo
	})
	return nil
}

func findRepository(repos []*github.Repository, fullName string) *github.Repository {
	for _, r := range repos {
		if strings.EqualFold(r.FullName, fullName) {
			return r
		}
	}
	return nil
}

// SelectRepository makes repo the current one and persists its full name
func (s *Session) SelectRepository(repo *github.Repository) error {
	if repo == nil {
		return s.fail(&github.ValidationError{Field: "repository", Msg: "no repository given"})
	}
	if err := s.prefs.Set(store.KeySelectedRepo, repo.FullName); err != nil {
		return s.fail(errors.Wrap(err, "persisting repository selection"))
	}
	s.update(func() {
		s.selected = repo
		s.myIssues = nil
		s.allIssues = nil
	})
	logrus.Infof("Selected repository %s", repo.FullName)
	return nil
}

// SelectRepositoryByName selects one of the loaded repositories by its
// owner/name
func (s *Session) SelectRepositoryByName(ctx context.Context, fullName string) error {
	if _, err := github.ParseRepository(fullName); err != nil {
		return s.fail(err)
	}
	if len(s.Snapshot().Repositories) == 0 {
		if err := s.LoadRepositories(ctx); err != nil {
			return err
		}
	}
	repo := findRepository(s.Snapshot().Repositories, fullName)
	if repo == nil {
		return s.fail(&github.ValidationError{
			Field: "repository", Value: fullName, Msg: "not in the repository list",
		})
	}
	return s.SelectRepository(repo)
}

// RefreshIssues fetches the issues assigned to the current user and all
// the issues of the selected repository. Both lists are fetched
// concurrently and published independently: a failure in one of them
// does not discard the other.
func (s *Session) RefreshIssues(ctx context.Context, state string) error {
	client, repo, err := s.clientAndRepo()
	if err != nil {
		return s.fail(err)
	}
	if state == "" {
		state = github.StateOpen
	}
	login := ""
	if u := s.Snapshot().User; u != nil {
		login = u.Login
	}
	done := s.beginLoading()
	defer done()
	s.update(func() { s.issueState = state })

	var g errgroup.Group
	g.Go(func() error {
		mine, err := client.ListIssues(ctx, repo.Owner, repo.Name, &github.IssueListOptions{
			State: state, Assignee: login,
		})
		if err != nil {
			return errors.Wrap(err, "listing my issues")
		}
		s.update(func() { s.myIssues = mine })
		return nil
	})
	g.Go(func() error {
		all, err := client.ListIssues(ctx, repo.Owner, repo.Name, &github.IssueListOptions{State: state})
		if err != nil {
			return errors.Wrap(err, "listing issues")
		}
		s.update(func() { s.allIssues = all })
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.fail(err)
	}
	snap := s.Snapshot()
	logrus.Infof("Read %d %s issues in %s, %d assigned to %s",
		len(snap.AllIssues), state, repo.FullName, len(snap.MyIssues), login)
	return nil
}

// CurrentIssueState returns the state filter of the last refresh
func (s *Session) CurrentIssueState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueState
}

// GetIssue fetches one issue of the selected repository
func (s *Session) GetIssue(ctx context.Context, number int) (*github.Issue, error) {
	client, repo, err := s.clientAndRepo()
	if err != nil {
		return nil, s.fail(err)
	}
	issue, err := client.GetIssue(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, s.fail(err)
	}
	return issue, nil
}

// CreateIssue creates an issue in the selected repository assigned to
// the current user and refreshes the issue lists
func (s *Session) CreateIssue(ctx context.Context, title, text string, dueDate *time.Time) (*github.Issue, error) {
	client, repo, err := s.clientAndRepo()
	if err != nil {
		return nil, s.fail(err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, s.fail(&github.ValidationError{Field: "title", Value: title, Msg: "title cannot be empty"})
	}
	req := &github.IssueCreateRequest{
		Title: title,
		Body:  issuebody.Compose(dueDate, strings.TrimSpace(text)),
	}
	if u := s.Snapshot().User; u != nil {
		req.Assignees = []string{u.Login}
	}
	issue, err := client.CreateIssue(ctx, repo.Owner, repo.Name, req)
	if err != nil {
		return nil, s.fail(errors.Wrap(err, "creating issue"))
	}
	if err := s.RefreshIssues(ctx, s.CurrentIssueState()); err != nil {
		return issue, err
	}
	return issue, nil
}
