// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

// Package issuebody reads and writes the metadata that todoglass stores
// inside the free text body of a GitHub issue.
package issuebody

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	duePrefix  = "due:"
	dueLabel   = "Due: "
	dateLayout = "2006-01-02"
	// DisplayLayout is the short month + day format used for presentation
	DisplayLayout = "Jan 2"
)

// Parse splits a raw issue body into the user text and the due date
// annotation. Every line starting with "due:" (case insensitive, after
// trimming) is removed from the text. When more than one due line holds
// a valid date, the last one wins. Lines with an unparsable date are
// dropped and record no date.
func Parse(rawBody string) (cleanBody string, dueDate *time.Time) {
	if strings.TrimSpace(rawBody) == "" {
		return "", nil
	}

	remaining := []string{}
	for _, line := range strings.Split(rawBody, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(trimmed), duePrefix) {
			remaining = append(remaining, line)
			continue
		}
		raw := strings.TrimSpace(trimmed[len(duePrefix):])
		date, err := ParseDate(raw)
		if err != nil {
			logrus.Debugf("Dropping due line with invalid date %q", raw)
			continue
		}
		dueDate = &date
	}

	return strings.TrimSpace(strings.Join(remaining, "\n")), dueDate
}

// Compose builds the body persisted to GitHub. Any due lines already
// present in cleanText are discarded so the result carries at most one.
func Compose(dueDate *time.Time, cleanText string) string {
	cleaned, _ := Parse(cleanText)
	if dueDate == nil {
		return cleaned
	}
	dueLine := dueLabel + FormatDate(*dueDate)
	if cleaned == "" {
		return dueLine
	}
	return dueLine + "\n\n" + cleaned
}

// ParseDate parses a strict YYYY-MM-DD calendar date in UTC
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// FormatDate returns the storage form of a calendar date
func FormatDate(date time.Time) string {
	return date.Format(dateLayout)
}

// DisplayString formats the calendar date of a due date in the local
// calendar as a month abbreviation and day, eg "Mar 1".
func DisplayString(date time.Time) string {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local).Format(DisplayLayout)
}
