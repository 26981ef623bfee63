// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

// githubAPIUser is a type meant to be embedded in all objects that need to
// perform calls to the GitHub API

package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	gogithub "github.com/google/go-github/v39/github"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type githubAPIUser struct {
	options    *Options
	client     *gogithub.Client
	clientOnce sync.Once
}

// headerTransport adds the REST API version headers to every request
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Accept", mediaType)
	r.Header.Set("X-GitHub-Api-Version", apiVersion)
	return t.base.RoundTrip(r)
}

// GitHubClient returns a go-github client. The client sends the token in
// the options as a bearer credential. It is built once and shared by
// concurrent calls.
func (gau *githubAPIUser) GitHubClient() *gogithub.Client {
	gau.clientOnce.Do(func() {
		gau.client = gau.newClient()
	})
	return gau.client
}

func (gau *githubAPIUser) newClient() *gogithub.Client {
	opts := gau.options
	if opts == nil {
		opts = &defaultOptions
	}

	base := http.DefaultClient
	if opts.HTTPClient != nil {
		base = opts.HTTPClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &headerTransport{base: transport},
		Timeout:   base.Timeout,
	}

	if opts.Token == "" {
		logrus.Warn("Note: GitHub client will not be authenticated")
	} else {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"},
		))
	}

	client := gogithub.NewClient(httpClient)
	if opts.APIURL != "" {
		apiURL := opts.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			logrus.Warnf("Invalid API URL %s, using the default endpoint: %v", opts.APIURL, err)
		} else {
			client.BaseURL = u
		}
	}
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}
	return client
}

func (gau *githubAPIUser) NewUser(ghuser *gogithub.User) *User {
	if ghuser == nil {
		return nil
	}
	return &User{
		ID:        ghuser.GetID(),
		Login:     ghuser.GetLogin(),
		AvatarURL: ghuser.GetAvatarURL(),
	}
}

func (gau *githubAPIUser) NewRepository(ghrepo *gogithub.Repository) *Repository {
	return &Repository{
		ID:          ghrepo.GetID(),
		Owner:       ghrepo.GetOwner().GetLogin(),
		Name:        ghrepo.GetName(),
		FullName:    ghrepo.GetFullName(),
		Private:     ghrepo.GetPrivate(),
		Description: ghrepo.GetDescription(),
	}
}

func (gau *githubAPIUser) NewLabel(ghlabel *gogithub.Label) *Label {
	return &Label{
		ID:    ghlabel.GetID(),
		Name:  ghlabel.GetName(),
		Color: ghlabel.GetColor(),
	}
}

func (gau *githubAPIUser) NewMilestone(ghmilestone *gogithub.Milestone) *Milestone {
	if ghmilestone == nil {
		return nil
	}
	return &Milestone{
		ID:     ghmilestone.GetID(),
		Number: ghmilestone.GetNumber(),
		Title:  ghmilestone.GetTitle(),
		State:  ghmilestone.GetState(),
	}
}

// NewIssue builds an Issue from a go-github issue. owner and repo are
// used as the issue location since listings do not embed the repository.
func (gau *githubAPIUser) NewIssue(owner, repo string, ghissue *gogithub.Issue) *Issue {
	issue := &Issue{
		ID:        ghissue.GetID(),
		Number:    ghissue.GetNumber(),
		Title:     ghissue.GetTitle(),
		Body:      ghissue.GetBody(),
		State:     ghissue.GetState(),
		URL:       ghissue.GetHTMLURL(),
		RepoOwner: owner,
		RepoName:  repo,
		Author:    gau.NewUser(ghissue.User),
		Assignees: []*User{},
		Labels:    []*Label{},
		Milestone: gau.NewMilestone(ghissue.Milestone),
	}
	for _, u := range ghissue.Assignees {
		issue.Assignees = append(issue.Assignees, gau.NewUser(u))
	}
	for _, l := range ghissue.Labels {
		issue.Labels = append(issue.Labels, gau.NewLabel(l))
	}
	return issue
}

// NewIssueRef builds a lightweight reference to a related issue
func (gau *githubAPIUser) NewIssueRef(ghissue *gogithub.Issue) *IssueRef {
	return &IssueRef{
		ID:     ghissue.GetID(),
		Number: ghissue.GetNumber(),
		Title:  ghissue.GetTitle(),
		URL:    ghissue.GetHTMLURL(),
	}
}
