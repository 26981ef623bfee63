// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// IssueRef is a lightweight pointer to a related issue
type IssueRef struct {
	ID     int64
	Number int
	Title  string
	URL    string
}

// Relationships groups the links of an issue as displayed while editing it
type Relationships struct {
	BlockedBy []*IssueRef
	Parent    *IssueRef
	SubIssues []*IssueRef
}

// FindBlockedBy returns the blocking issue with the given number
func (r *Relationships) FindBlockedBy(number int) *IssueRef {
	return findRef(r.BlockedBy, number)
}

// FindSubIssue returns the child issue with the given number
func (r *Relationships) FindSubIssue(number int) *IssueRef {
	return findRef(r.SubIssues, number)
}

func findRef(refs []*IssueRef, number int) *IssueRef {
	for _, ref := range refs {
		if ref.Number == number {
			return ref
		}
	}
	return nil
}

// RelationshipManager reads and edits the links of a single issue. Every
// mutation reloads all relationships from the server before returning.
type RelationshipManager struct {
	gh    *GitHub
	Owner string
	Repo  string
	Issue *IssueRef
}

// Relationships returns a manager for the links of issue
func (gh *GitHub) Relationships(owner, repo string, issue *IssueRef) *RelationshipManager {
	return &RelationshipManager{
		gh:    gh,
		Owner: owner,
		Repo:  repo,
		Issue: issue,
	}
}

func (rm *RelationshipManager) ListBlockedBy(ctx context.Context) ([]*IssueRef, error) {
	return rm.gh.ListBlockedBy(ctx, rm.Owner, rm.Repo, rm.Issue.Number)
}

func (rm *RelationshipManager) ListBlocking(ctx context.Context) ([]*IssueRef, error) {
	return rm.gh.ListBlocking(ctx, rm.Owner, rm.Repo, rm.Issue.Number)
}

func (rm *RelationshipManager) ListSubIssues(ctx context.Context) ([]*IssueRef, error) {
	return rm.gh.ListSubIssues(ctx, rm.Owner, rm.Repo, rm.Issue.Number)
}

func (rm *RelationshipManager) GetParent(ctx context.Context) (*IssueRef, error) {
	return rm.gh.GetParent(ctx, rm.Owner, rm.Repo, rm.Issue.Number)
}

// Load fetches blocked-by, parent and sub-issues concurrently. Each list
// is set as soon as its call returns, so a failure in one of them still
// leaves the others populated.
func (rm *RelationshipManager) Load(ctx context.Context) (*Relationships, error) {
	rels := &Relationships{
		BlockedBy: []*IssueRef{},
		SubIssues: []*IssueRef{},
	}
	var g errgroup.Group
	g.Go(func() error {
		refs, err := rm.ListBlockedBy(ctx)
		if err != nil {
			return errors.Wrap(err, "loading blocked-by issues")
		}
		rels.BlockedBy = refs
		return nil
	})
	g.Go(func() error {
		parent, err := rm.GetParent(ctx)
		if err != nil {
			return errors.Wrap(err, "loading parent issue")
		}
		rels.Parent = parent
		return nil
	})
	g.Go(func() error {
		refs, err := rm.ListSubIssues(ctx)
		if err != nil {
			return errors.Wrap(err, "loading sub-issues")
		}
		rels.SubIssues = refs
		return nil
	})
	return rels, g.Wait()
}

// relationshipOp is one resolve-then-mutate step. resolve finds the issue
// the mutation refers to, mutate applies the change. A nil target from
// resolve skips the mutation.
type relationshipOp struct {
	name    string
	resolve func(ctx context.Context) (*IssueRef, error)
	mutate  func(ctx context.Context, target *IssueRef) error
}

// run executes op and reloads the relationships. Failures are returned
// as is, nothing is retried.
func (rm *RelationshipManager) run(ctx context.Context, op relationshipOp) (*Relationships, error) {
	target, err := op.resolve(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving issue to %s", op.name)
	}
	if target == nil {
		logrus.Debugf("Nothing to %s on issue #%d", op.name, rm.Issue.Number)
	} else {
		if err := op.mutate(ctx, target); err != nil {
			return nil, errors.Wrapf(err, "trying to %s", op.name)
		}
		logrus.Infof("%s: issue #%d -> #%d", op.name, rm.Issue.Number, target.Number)
	}

	rels, err := rm.Load(ctx)
	if err != nil {
		return rels, errors.Wrap(err, "reloading relationships")
	}
	return rels, nil
}

// byNumber resolves a user entered issue number into the issue id
func (rm *RelationshipManager) byNumber(number int) func(context.Context) (*IssueRef, error) {
	return func(ctx context.Context) (*IssueRef, error) {
		if number <= 0 {
			return nil, &ValidationError{Field: "issue number", Value: strconv.Itoa(number), Msg: "must be positive"}
		}
		issue, err := rm.gh.GetIssue(ctx, rm.Owner, rm.Repo, number)
		if err != nil {
			return nil, err
		}
		return issue.Ref(), nil
	}
}

// byID is used when the caller already holds the id of the target
func byID(id int64) func(context.Context) (*IssueRef, error) {
	return func(context.Context) (*IssueRef, error) {
		return &IssueRef{ID: id}, nil
	}
}

// AddBlockedBy marks the issue as blocked by issue number. The number is
// resolved to the issue id first since the dependencies API keys on ids.
func (rm *RelationshipManager) AddBlockedBy(ctx context.Context, number int) (*Relationships, error) {
	return rm.run(ctx, relationshipOp{
		name:    "add blocked-by",
		resolve: rm.byNumber(number),
		mutate: func(ctx context.Context, target *IssueRef) error {
			return rm.gh.AddBlockedBy(ctx, rm.Owner, rm.Repo, rm.Issue.Number, target.ID)
		},
	})
}

func (rm *RelationshipManager) RemoveBlockedBy(ctx context.Context, blockerID int64) (*Relationships, error) {
	return rm.run(ctx, relationshipOp{
		name:    "remove blocked-by",
		resolve: byID(blockerID),
		mutate: func(ctx context.Context, target *IssueRef) error {
			return rm.gh.RemoveBlockedBy(ctx, rm.Owner, rm.Repo, rm.Issue.Number, target.ID)
		},
	})
}

// AddSubIssue makes issue number a child of the managed issue
func (rm *RelationshipManager) AddSubIssue(ctx context.Context, number int) (*Relationships, error) {
	return rm.run(ctx, relationshipOp{
		name:    "add sub-issue",
		resolve: rm.byNumber(number),
		mutate: func(ctx context.Context, target *IssueRef) error {
			return rm.gh.AddSubIssue(ctx, rm.Owner, rm.Repo, rm.Issue.Number, target.ID)
		},
	})
}

func (rm *RelationshipManager) RemoveSubIssue(ctx context.Context, childID int64) (*Relationships, error) {
	return rm.run(ctx, relationshipOp{
		name:    "remove sub-issue",
		resolve: byID(childID),
		mutate: func(ctx context.Context, target *IssueRef) error {
			return rm.gh.RemoveSubIssue(ctx, rm.Owner, rm.Repo, rm.Issue.Number, target.ID)
		},
	})
}

// SetParent adds the managed issue as a sub-issue of parent number
func (rm *RelationshipManager) SetParent(ctx context.Context, number int) (*Relationships, error) {
	return rm.run(ctx, relationshipOp{
		name:    "set parent",
		resolve: rm.byNumber(number),
		mutate: func(ctx context.Context, parent *IssueRef) error {
			return rm.gh.AddSubIssue(ctx, rm.Owner, rm.Repo, parent.Number, rm.Issue.ID)
		},
	})
}

// ClearParent removes the managed issue from its current parent. It is a
// no-op when the issue has no parent.
func (rm *RelationshipManager) ClearParent(ctx context.Context) (*Relationships, error) {
	return rm.run(ctx, relationshipOp{
		name:    "clear parent",
		resolve: rm.GetParent,
		mutate: func(ctx context.Context, parent *IssueRef) error {
			return rm.gh.RemoveSubIssue(ctx, rm.Owner, rm.Repo, parent.Number, rm.Issue.ID)
		},
	})
}
