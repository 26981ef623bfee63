// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

import (
	"context"

	gogithub "github.com/google/go-github/v39/github"
	"github.com/sirupsen/logrus"
)

const repoAffiliation = "owner,collaborator,organization_member"

type defaultGithubImplementation struct {
	githubAPIUser
}

func (di *defaultGithubImplementation) getCurrentUser(ctx context.Context) (*User, error) {
	ghuser, resp, err := di.GitHubClient().Users.Get(ctx, "")
	if err != nil {
		return nil, wrapAPIError(resp, err, "getting user from GitHub API")
	}
	return di.NewUser(ghuser), nil
}

func (di *defaultGithubImplementation) listRepositories(ctx context.Context, perPage int) ([]*Repository, error) {
	ghrepos, resp, err := di.GitHubClient().Repositories.List(ctx, "", &gogithub.RepositoryListOptions{
		Affiliation: repoAffiliation,
		Sort:        "updated",
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, wrapAPIError(resp, err, "listing repositories from GitHub API")
	}

	repos := []*Repository{}
	for _, r := range ghrepos {
		repos = append(repos, di.NewRepository(r))
	}
	logrus.Debugf("Read %d repositories", len(repos))
	return repos, nil
}
