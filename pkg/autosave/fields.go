// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package autosave

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattermost/todoglass/pkg/issuebody"
)

// Fields is the editable state of an issue
type Fields struct {
	Title     string
	Text      string     // Body text without metadata
	DueDate   *time.Time // Stored in the body as a due line
	State     string
	Assignees []string // Assignee logins
	Labels    []string // Label names
	Milestone int      // Milestone number, 0 for none
}

// Clone returns a deep copy of the fields
func (f *Fields) Clone() Fields {
	c := *f
	c.Assignees = append([]string{}, f.Assignees...)
	c.Labels = append([]string{}, f.Labels...)
	if f.DueDate != nil {
		d := *f.DueDate
		c.DueDate = &d
	}
	return c
}

// ComposedBody returns the body as it is persisted, including the due line
func (f *Fields) ComposedBody() string {
	return issuebody.Compose(f.DueDate, strings.TrimSpace(f.Text))
}

// Fingerprint returns a checksum of the fields that matter when saving.
// Assignees and labels are sorted so their order does not count as a change.
func (f *Fields) Fingerprint() string {
	assignees := append([]string{}, f.Assignees...)
	sort.Strings(assignees)
	labels := append([]string{}, f.Labels...)
	sort.Strings(labels)

	parts := []string{
		strings.TrimSpace(f.Title),
		f.ComposedBody(),
		f.State,
		strings.Join(assignees, ","),
		strings.Join(labels, ","),
		strconv.Itoa(f.Milestone),
	}

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
