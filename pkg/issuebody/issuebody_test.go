// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issuebody

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) *time.Time {
	d, err := ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestParse(t *testing.T) {
	clean, due := Parse("Due: 2024-03-01\n\nBuy milk")
	require.Equal(t, "Buy milk", clean)
	require.NotNil(t, due)
	require.Equal(t, "2024-03-01", FormatDate(*due))
	require.Equal(t, time.UTC, due.Location())

	// Empty and blank bodies
	clean, due = Parse("")
	require.Equal(t, "", clean)
	require.Nil(t, due)
	clean, due = Parse("  \n\t\n")
	require.Equal(t, "", clean)
	require.Nil(t, due)

	// Prefix match is case insensitive and tolerates indentation
	clean, due = Parse("first line\n   DUE:   2023-12-31  \nsecond line")
	require.Equal(t, "first line\nsecond line", clean)
	require.Equal(t, "2023-12-31", FormatDate(*due))

	// No metadata at all
	clean, due = Parse("\n  just text\nmore  \n")
	require.Equal(t, "just text\nmore", clean)
	require.Nil(t, due)
}

func TestParseInvalidDueLine(t *testing.T) {
	for _, body := range []string{
		"Due: tomorrow\ntext",
		"due: 2024-02-30\ntext",
		"Due: 2024-3-1\ntext",
		"Due:\ntext",
	} {
		clean, due := Parse(body)
		require.Equal(t, "text", clean, body)
		require.Nil(t, due, body)
	}
}

func TestParseLastDueLineWins(t *testing.T) {
	clean, due := Parse("Due: 2024-01-01\nnotes\nDue: 2024-06-15")
	require.Equal(t, "notes", clean)
	require.Equal(t, "2024-06-15", FormatDate(*due))

	// An invalid trailing line does not reset a valid earlier one
	_, due = Parse("Due: 2024-01-01\nDue: never")
	require.Equal(t, "2024-01-01", FormatDate(*due))
}

func TestCompose(t *testing.T) {
	require.Equal(t, "Due: 2024-03-01\n\nBuy milk", Compose(date(t, "2024-03-01"), "Buy milk"))
	require.Equal(t, "Due: 2024-03-01", Compose(date(t, "2024-03-01"), ""))
	require.Equal(t, "Due: 2024-03-01", Compose(date(t, "2024-03-01"), " \n "))
	require.Equal(t, "", Compose(nil, ""))
	require.Equal(t, "Buy milk", Compose(nil, "  Buy milk\n"))

	// Stale due lines in the text are replaced, not duplicated
	require.Equal(t, "Due: 2025-01-02\n\ntext", Compose(date(t, "2025-01-02"), "Due: 2020-01-01\ntext"))
}

func TestRoundTrip(t *testing.T) {
	texts := []string{
		"Buy milk",
		"line one\n\nline two\n  indented",
		"due soon, but not metadata",
		"multi\nline\n\n\nwith gaps",
		"",
	}
	dates := []*time.Time{
		nil, date(t, "2024-02-29"), date(t, "1999-12-31"), date(t, "2030-07-04"),
	}
	for _, text := range texts {
		for _, d := range dates {
			clean, due := Parse(Compose(d, text))
			require.Equal(t, text, clean)
			if d == nil {
				require.Nil(t, due)
				continue
			}
			require.NotNil(t, due)
			require.True(t, d.Equal(*due))
		}
	}
}

func TestDisplayString(t *testing.T) {
	require.Equal(t, "Mar 1", DisplayString(*date(t, "2024-03-01")))
	require.Equal(t, "Dec 31", DisplayString(*date(t, "1999-12-31")))
}
