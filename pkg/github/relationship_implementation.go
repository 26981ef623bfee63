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

const (
	relationBlockedBy = "dependencies/blocked_by"
	relationBlocking  = "dependencies/blocking"
	relationSubIssues = "sub_issues"
	relationParent    = "sub_issues/parent"
)

func issuePath(owner, repo string, number int, rest string) string {
	return fmt.Sprintf("repos/%v/%v/issues/%d/%s", owner, repo, number, rest)
}

// listRelated reads one of the issue lists hanging from an issue. A 404
// or an empty 204 means the issue has no such relation.
func (di *defaultGithubImplementation) listRelated(
	ctx context.Context, owner, repo string, number int, relation string,
) ([]*IssueRef, error) {
	client := di.GitHubClient()
	req, err := client.NewRequest(http.MethodGet, issuePath(owner, repo, number, relation), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	ghissues := []*gogithub.Issue{}
	resp, err := client.Do(ctx, req, &ghissues)
	if err != nil {
		err = wrapAPIError(resp, err, fmt.Sprintf("reading %s of issue #%d", relation, number))
		if IsNotFound(err) {
			logrus.Debugf("Issue #%d has no %s", number, relation)
			return []*IssueRef{}, nil
		}
		return nil, err
	}

	refs := []*IssueRef{}
	for _, i := range ghissues {
		refs = append(refs, di.NewIssueRef(i))
	}
	return refs, nil
}

func (di *defaultGithubImplementation) getParent(ctx context.Context, owner, repo string, number int) (*IssueRef, error) {
	client := di.GitHubClient()
	req, err := client.NewRequest(http.MethodGet, issuePath(owner, repo, number, relationParent), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	var parent *gogithub.Issue
	resp, err := client.Do(ctx, req, &parent)
	if err != nil {
		err = wrapAPIError(resp, err, fmt.Sprintf("reading parent of issue #%d", number))
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || parent == nil || parent.ID == nil {
		return nil, nil
	}
	return di.NewIssueRef(parent), nil
}

// send issues a mutating relationship call, discarding the response body
func (di *defaultGithubImplementation) send(ctx context.Context, method, path string, body interface{}) error {
	client := di.GitHubClient()
	req, err := client.NewRequest(method, path, body)
	if err != nil {
		return &TransportError{Err: err}
	}
	resp, err := client.Do(ctx, req, nil)
	if err != nil {
		return wrapAPIError(resp, err, fmt.Sprintf("%s %s", method, path))
	}
	return nil
}

func (di *defaultGithubImplementation) addBlockedBy(
	ctx context.Context, owner, repo string, number int, blockerID int64,
) error {
	return di.send(ctx, http.MethodPost, issuePath(owner, repo, number, relationBlockedBy),
		map[string]int64{"issue_id": blockerID})
}

func (di *defaultGithubImplementation) removeBlockedBy(
	ctx context.Context, owner, repo string, number int, blockerID int64,
) error {
	return di.send(ctx, http.MethodDelete,
		issuePath(owner, repo, number, fmt.Sprintf("%s/%d", relationBlockedBy, blockerID)), nil)
}

func (di *defaultGithubImplementation) addSubIssue(
	ctx context.Context, owner, repo string, parentNumber int, childID int64,
) error {
	return di.send(ctx, http.MethodPost, issuePath(owner, repo, parentNumber, relationSubIssues),
		map[string]int64{"sub_issue_id": childID})
}

// removeSubIssue uses the singular sub_issue endpoint, which takes the
// child id in the request body
func (di *defaultGithubImplementation) removeSubIssue(
	ctx context.Context, owner, repo string, parentNumber int, childID int64,
) error {
	return di.send(ctx, http.MethodDelete, issuePath(owner, repo, parentNumber, "sub_issue"),
		map[string]int64{"sub_issue_id": childID})
}
