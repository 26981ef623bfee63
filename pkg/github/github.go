// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

import (
	"context"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

const (
	githubTknVar = "GITHUB_TOKEN"

	DefaultAPIURL    = "https://api.github.com/"
	DefaultPerPage   = 100
	DefaultUserAgent = "todoglass"

	apiVersion = "2022-11-28"
	mediaType  = "application/vnd.github+json"

	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// TokenFromEnv returns the token set in the GITHUB_TOKEN variable
func TokenFromEnv() string {
	return os.Getenv(githubTknVar)
}

type GitHub struct {
	impl    githubImplementation
	options *Options
}

// New returns a new GitHub client authenticated with token
func New(token string) *GitHub {
	opts := defaultOptions
	opts.Token = token
	return NewWithOptions(&opts)
}

// NewWithOptions returns a client configured with a copy of opts
func NewWithOptions(opts *Options) *GitHub {
	o := defaultOptions
	if opts != nil {
		o = *opts
	}
	opts = &o
	if opts.APIURL == "" {
		opts.APIURL = defaultOptions.APIURL
	}
	// List endpoints are never paginated past the first page, so
	// PerPage is the scale limit of every listing.
	if opts.PerPage <= 0 {
		opts.PerPage = defaultOptions.PerPage
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultOptions.UserAgent
	}
	gh := &GitHub{
		impl: &defaultGithubImplementation{
			githubAPIUser: githubAPIUser{options: opts},
		},
		options: opts,
	}
	return gh
}

type Options struct {
	Token      string       // Bearer credential sent with every request
	APIURL     string       // Base URL of the REST API
	PerPage    int          // Page size requested by list endpoints
	UserAgent  string       // User-Agent header value
	HTTPClient *http.Client // Optional base client, wrapped by the oauth2 transport
}

var defaultOptions = Options{
	APIURL:    DefaultAPIURL,
	PerPage:   DefaultPerPage,
	UserAgent: DefaultUserAgent,
}

// Options returns the client option set
func (gh *GitHub) Options() *Options {
	return gh.options
}

type githubImplementation interface {
	getCurrentUser(ctx context.Context) (*User, error)
	listRepositories(ctx context.Context, perPage int) ([]*Repository, error)
	listIssues(ctx context.Context, owner, repo string, opts *IssueListOptions, perPage int) ([]*Issue, error)
	getIssue(ctx context.Context, owner, repo string, number int) (*Issue, error)
	listLabels(ctx context.Context, owner, repo string, perPage int) ([]*Label, error)
	listMilestones(ctx context.Context, owner, repo string, perPage int) ([]*Milestone, error)
	listAssignees(ctx context.Context, owner, repo string, perPage int) ([]*User, error)
	createIssue(ctx context.Context, owner, repo string, req *IssueCreateRequest) (*Issue, error)
	updateIssue(ctx context.Context, owner, repo string, number int, req *IssueUpdateRequest) (*Issue, error)

	listRelated(ctx context.Context, owner, repo string, number int, relation string) ([]*IssueRef, error)
	getParent(ctx context.Context, owner, repo string, number int) (*IssueRef, error)
	addBlockedBy(ctx context.Context, owner, repo string, number int, blockerID int64) error
	removeBlockedBy(ctx context.Context, owner, repo string, number int, blockerID int64) error
	addSubIssue(ctx context.Context, owner, repo string, parentNumber int, childID int64) error
	removeSubIssue(ctx context.Context, owner, repo string, parentNumber int, childID int64) error
}

// checkToken fails with a precondition error when no credential is set
func (gh *GitHub) checkToken() error {
	if gh.options.Token == "" {
		return &PreconditionError{Reason: "missing GitHub token"}
	}
	return nil
}

// CurrentUser fetches the authenticated user
func (gh *GitHub) CurrentUser(ctx context.Context) (*User, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.getCurrentUser(ctx)
}

// ListRepositories returns the repositories the user owns, collaborates
// on or can reach through an organization, most recently updated first
func (gh *GitHub) ListRepositories(ctx context.Context) ([]*Repository, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.listRepositories(ctx, gh.options.PerPage)
}

// ListIssues lists the issues in a repository. Pull requests returned
// by the issues endpoint are filtered out.
func (gh *GitHub) ListIssues(ctx context.Context, owner, repo string, opts *IssueListOptions) ([]*Issue, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	listOpts := IssueListOptions{}
	if opts != nil {
		listOpts = *opts
	}
	if listOpts.State == "" {
		listOpts.State = StateOpen
	}
	return gh.impl.listIssues(ctx, owner, repo, &listOpts, gh.options.PerPage)
}

// GetIssue fetches a single issue by number
func (gh *GitHub) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.getIssue(ctx, owner, repo, number)
}

func (gh *GitHub) ListLabels(ctx context.Context, owner, repo string) ([]*Label, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.listLabels(ctx, owner, repo, gh.options.PerPage)
}

// ListMilestones returns open and closed milestones
func (gh *GitHub) ListMilestones(ctx context.Context, owner, repo string) ([]*Milestone, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.listMilestones(ctx, owner, repo, gh.options.PerPage)
}

// ListAssignees returns the users issues in the repository can be assigned to
func (gh *GitHub) ListAssignees(ctx context.Context, owner, repo string) ([]*User, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.listAssignees(ctx, owner, repo, gh.options.PerPage)
}

func (gh *GitHub) CreateIssue(ctx context.Context, owner, repo string, req *IssueCreateRequest) (*Issue, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("unable to create issue, request is nil")
	}
	return gh.impl.createIssue(ctx, owner, repo, req)
}

// UpdateIssue replaces the editable fields of an issue with the ones in req
func (gh *GitHub) UpdateIssue(ctx context.Context, owner, repo string, number int, req *IssueUpdateRequest) (*Issue, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("unable to update issue, request is nil")
	}
	return gh.impl.updateIssue(ctx, owner, repo, number, req.normalize())
}

// ListBlockedBy returns the issues blocking issue number. Issues without
// dependencies yield an empty list.
func (gh *GitHub) ListBlockedBy(ctx context.Context, owner, repo string, number int) ([]*IssueRef, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.listRelated(ctx, owner, repo, number, relationBlockedBy)
}

// ListBlocking returns the issues blocked by issue number
func (gh *GitHub) ListBlocking(ctx context.Context, owner, repo string, number int) ([]*IssueRef, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.listRelated(ctx, owner, repo, number, relationBlocking)
}

// ListSubIssues returns the children of issue number
func (gh *GitHub) ListSubIssues(ctx context.Context, owner, repo string, number int) ([]*IssueRef, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.listRelated(ctx, owner, repo, number, relationSubIssues)
}

// GetParent returns the parent of issue number or nil if it has none
func (gh *GitHub) GetParent(ctx context.Context, owner, repo string, number int) (*IssueRef, error) {
	if err := gh.checkToken(); err != nil {
		return nil, err
	}
	return gh.impl.getParent(ctx, owner, repo, number)
}

// AddBlockedBy marks issue number as blocked by the issue with blockerID
func (gh *GitHub) AddBlockedBy(ctx context.Context, owner, repo string, number int, blockerID int64) error {
	if err := gh.checkToken(); err != nil {
		return err
	}
	return gh.impl.addBlockedBy(ctx, owner, repo, number, blockerID)
}

func (gh *GitHub) RemoveBlockedBy(ctx context.Context, owner, repo string, number int, blockerID int64) error {
	if err := gh.checkToken(); err != nil {
		return err
	}
	return gh.impl.removeBlockedBy(ctx, owner, repo, number, blockerID)
}

// AddSubIssue adds the issue with childID as a sub-issue of parentNumber
func (gh *GitHub) AddSubIssue(ctx context.Context, owner, repo string, parentNumber int, childID int64) error {
	if err := gh.checkToken(); err != nil {
		return err
	}
	return gh.impl.addSubIssue(ctx, owner, repo, parentNumber, childID)
}

func (gh *GitHub) RemoveSubIssue(ctx context.Context, owner, repo string, parentNumber int, childID int64) error {
	if err := gh.checkToken(); err != nil {
		return err
	}
	return gh.impl.removeSubIssue(ctx, owner, repo, parentNumber, childID)
}
