// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package backends

import "github.com/pkg/errors"

// ErrNotExist is returned when reading an object that is not stored
var ErrNotExist = errors.New("object does not exist")

type Options struct {
	ServiceOptions interface{}
}

type Backend interface {
	URLPrefix() string
	Prefixes() []string
	PathExists(string) (bool, error)
	ReadObject(string) ([]byte, error)
	WriteObject(string, []byte) error
	DeleteObject(string) error
}
