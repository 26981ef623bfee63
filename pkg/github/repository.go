// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

import (
	"strings"

	"github.com/pkg/errors"
)

type Repository struct {
	ID          int64
	Owner       string
	Name        string
	FullName    string // owner/name, used to persist the selection
	Private     bool
	Description string
}

func NewRepository(owner, name string) *Repository {
	return &Repository{
		Owner:    owner,
		Name:     name,
		FullName: owner + "/" + name,
	}
}

// ParseRepository builds a repository from its owner/name full name
func ParseRepository(fullName string) (*Repository, error) {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.Errorf("repository name %q is not in owner/name form", fullName)
	}
	return NewRepository(parts[0], parts[1]), nil
}
