// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

import (
	"sort"
	"strings"
	"time"

	"github.com/mattermost/todoglass/pkg/issuebody"
)

type Issue struct {
	ID        int64 // Immutable id, used by the relationship endpoints
	Number    int
	Title     string
	Body      string // Raw body, including the due date line
	State     string
	URL       string
	RepoOwner string
	RepoName  string
	Author    *User
	Assignees []*User
	Labels    []*Label
	Milestone *Milestone
}

// CleanBody returns the body text without metadata lines
func (i *Issue) CleanBody() string {
	clean, _ := issuebody.Parse(i.Body)
	return clean
}

// DueDate returns the due date stored in the body, if any
func (i *Issue) DueDate() *time.Time {
	_, due := issuebody.Parse(i.Body)
	return due
}

// AssigneeLogins returns the sorted logins of the issue assignees
func (i *Issue) AssigneeLogins() []string {
	logins := []string{}
	for _, u := range i.Assignees {
		logins = append(logins, u.Login)
	}
	sort.Strings(logins)
	return logins
}

// LabelNames returns the sorted names of the issue labels
func (i *Issue) LabelNames() []string {
	names := []string{}
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}

// MilestoneNumber returns the milestone number or 0 when none is set
func (i *Issue) MilestoneNumber() int {
	if i.Milestone == nil {
		return 0
	}
	return i.Milestone.Number
}

func (i *Issue) IsClosed() bool {
	return strings.EqualFold(i.State, StateClosed)
}

// Ref returns the relationship reference pointing to the issue
func (i *Issue) Ref() *IssueRef {
	return &IssueRef{
		ID:     i.ID,
		Number: i.Number,
		Title:  i.Title,
		URL:    i.URL,
	}
}

type Label struct {
	ID    int64
	Name  string
	Color string
}

type Milestone struct {
	ID     int64
	Number int
	Title  string
	State  string
}

// IssueListOptions filters issue listings
type IssueListOptions struct {
	State    string // open, closed or all. Defaults to open
	Assignee string // Optional assignee login
}

// IssueCreateRequest holds the fields of a new issue
type IssueCreateRequest struct {
	Title     string
	Body      string
	Assignees []string
	Labels    []string
	Milestone *int
}

// IssueUpdateRequest is a full replacement of the editable issue fields.
// Nil Body and Milestone are sent as JSON null, clearing them.
type IssueUpdateRequest struct {
	Title     string   `json:"title"`
	Body      *string  `json:"body"`
	State     string   `json:"state"`
	Assignees []string `json:"assignees"`
	Labels    []string `json:"labels"`
	Milestone *int     `json:"milestone"`
}

// normalize makes sure empty sets are sent as [] and not null
func (r *IssueUpdateRequest) normalize() *IssueUpdateRequest {
	if r.Assignees == nil {
		r.Assignees = []string{}
	}
	if r.Labels == nil {
		r.Labels = []string{}
	}
	if r.State == "" {
		r.State = StateOpen
	}
	return r
}
