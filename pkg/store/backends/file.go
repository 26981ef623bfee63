// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package backends

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/util"
)

const URLPrefixFilesystem = "file://"

// Objects may hold credentials, so they are only readable by the user
const (
	fileMode = os.FileMode(0o600)
	dirMode  = os.FileMode(0o700)
)

type Filesystem struct{}

var filePrefixes = []string{URLPrefixFilesystem}

func NewFilesystemWithOptions(opts *Options) *Filesystem {
	return &Filesystem{}
}

func (fsb *Filesystem) URLPrefix() string {
	return URLPrefixFilesystem
}

func (fsb *Filesystem) Prefixes() []string {
	return filePrefixes
}

func (fsb *Filesystem) localPath(objectURL string) string {
	return filepath.Join(string(filepath.Separator), strings.TrimPrefix(objectURL, URLPrefixFilesystem))
}

func (fsb *Filesystem) PathExists(objectURL string) (bool, error) {
	return util.Exists(fsb.localPath(objectURL)), nil
}

func (fsb *Filesystem) ReadObject(objectURL string) ([]byte, error) {
	path := fsb.localPath(objectURL)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

// WriteObject writes data to the path in the URL, creating the
// directories leading to it
func (fsb *Filesystem) WriteObject(objectURL string, data []byte) error {
	path := fsb.localPath(objectURL)
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return errors.Wrap(err, "creating object directory")
	}
	logrus.Debugf("Writing %d bytes to %s", len(data), path)
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func (fsb *Filesystem) DeleteObject(objectURL string) error {
	path := fsb.localPath(objectURL)
	if !util.Exists(path) {
		return nil
	}
	return errors.Wrapf(os.Remove(path), "removing %s", path)
}
