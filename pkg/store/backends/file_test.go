// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package backends

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileReadWrite(t *testing.T) {
	fs := NewFilesystemWithOptions(&Options{})
	dir := t.TempDir()
	objectURL := URLPrefixFilesystem + filepath.Join(dir, "nested", "selected_repo")

	exists, err := fs.PathExists(objectURL)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = fs.ReadObject(objectURL)
	require.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, fs.WriteObject(objectURL, []byte("octocat/todo")))
	exists, err = fs.PathExists(objectURL)
	require.NoError(t, err)
	require.True(t, exists)

	data, err := fs.ReadObject(objectURL)
	require.NoError(t, err)
	require.Equal(t, "octocat/todo", string(data))

	info, err := os.Stat(filepath.Join(dir, "nested", "selected_repo"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, fs.DeleteObject(objectURL))
	exists, err = fs.PathExists(objectURL)
	require.NoError(t, err)
	require.False(t, exists)

	// Deleting twice is fine
	require.NoError(t, fs.DeleteObject(objectURL))
}
