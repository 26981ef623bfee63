// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

import (
	"context"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v39/github"
	"github.com/sirupsen/logrus"
)

func (di *defaultGithubImplementation) listIssues(
	ctx context.Context, owner, repo string, opts *IssueListOptions, perPage int,
) ([]*Issue, error) {
	ghissues, resp, err := di.GitHubClient().Issues.ListByRepo(ctx, owner, repo, &gogithub.IssueListByRepoOptions{
		State:       opts.State,
		Assignee:    opts.Assignee,
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, wrapAPIError(resp, err, fmt.Sprintf("listing issues in %s/%s", owner, repo))
	}

	issues := []*Issue{}
	for _, ghissue := range ghissues {
		// The issues endpoint also returns pull requests
		if ghissue.IsPullRequest() {
			continue
		}
		issues = append(issues, di.NewIssue(owner, repo, ghissue))
	}
	logrus.Debugf("Read %d issues from %s/%s (%d entries)", len(issues), owner, repo, len(ghissues))
	return issues, nil
}

func (di *defaultGithubImplementation) getIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	ghissue, resp, err := di.GitHubClient().Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, wrapAPIError(resp, err, fmt.Sprintf("fetching issue #%d from GitHub API", number))
	}
	return di.NewIssue(owner, repo, ghissue), nil
}

func (di *defaultGithubImplementation) listLabels(ctx context.Context, owner, repo string, perPage int) ([]*Label, error) {
	ghlabels, resp, err := di.GitHubClient().Issues.ListLabels(ctx, owner, repo, &gogithub.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, wrapAPIError(resp, err, "listing labels")
	}
	labels := []*Label{}
	for _, l := range ghlabels {
		labels = append(labels, di.NewLabel(l))
	}
	return labels, nil
}

func (di *defaultGithubImplementation) listMilestones(ctx context.Context, owner, repo string, perPage int) ([]*Milestone, error) {
	ghmilestones, resp, err := di.GitHubClient().Issues.ListMilestones(ctx, owner, repo, &gogithub.MilestoneListOptions{
		State:       StateAll,
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, wrapAPIError(resp, err, "listing milestones")
	}
	milestones := []*Milestone{}
	for _, m := range ghmilestones {
		milestones = append(milestones, di.NewMilestone(m))
	}
	return milestones, nil
}

func (di *defaultGithubImplementation) listAssignees(ctx context.Context, owner, repo string, perPage int) ([]*User, error) {
	ghusers, resp, err := di.GitHubClient().Issues.ListAssignees(ctx, owner, repo, &gogithub.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, wrapAPIError(resp, err, "listing assignees")
	}
	users := []*User{}
	for _, u := range ghusers {
		users = append(users, di.NewUser(u))
	}
	return users, nil
}

func (di *defaultGithubImplementation) createIssue(
	ctx context.Context, owner, repo string, req *IssueCreateRequest,
) (*Issue, error) {
	newIssue := &gogithub.IssueRequest{
		Title:     &req.Title,
		Milestone: req.Milestone,
	}
	if req.Body != "" {
		newIssue.Body = &req.Body
	}
	if len(req.Assignees) > 0 {
		newIssue.Assignees = &req.Assignees
	}
	if len(req.Labels) > 0 {
		newIssue.Labels = &req.Labels
	}
	ghissue, resp, err := di.GitHubClient().Issues.Create(ctx, owner, repo, newIssue)
	if err != nil {
		return nil, wrapAPIError(resp, err, "creating issue")
	}
	logrus.Infof("Created issue #%d in %s/%s", ghissue.GetNumber(), owner, repo)
	return di.NewIssue(owner, repo, ghissue), nil
}

// updateIssue sends the request as is instead of using gogithub.IssueRequest
// because the latter omits nil fields and cannot clear a milestone or body.
func (di *defaultGithubImplementation) updateIssue(
	ctx context.Context, owner, repo string, number int, req *IssueUpdateRequest,
) (*Issue, error) {
	client := di.GitHubClient()
	httpReq, err := client.NewRequest(http.MethodPatch, fmt.Sprintf("repos/%v/%v/issues/%d", owner, repo, number), req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	ghissue := &gogithub.Issue{}
	resp, err := client.Do(ctx, httpReq, ghissue)
	if err != nil {
		return nil, wrapAPIError(resp, err, fmt.Sprintf("updating issue #%d", number))
	}
	logrus.Infof("Updated issue #%d in %s/%s", number, owner, repo)
	return di.NewIssue(owner, repo, ghissue), nil
}
