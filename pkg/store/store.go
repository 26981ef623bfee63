// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"strings"

	"github.com/mattermost/todoglass/pkg/store/backends"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Manager dispatches object operations to the backend handling each URL
type Manager struct {
	impl     ManagerImplementation
	Backends []backends.Backend
}

// NewManager returns a new object manager with the filesystem and S3 backends
func NewManager() *Manager {
	return &Manager{
		impl: &defaultManagerImpl{},
		Backends: []backends.Backend{
			backends.NewFilesystemWithOptions(&backends.Options{}),
			backends.NewS3WithOptions(&backends.Options{}),
		},
	}
}

func (om *Manager) backend(objectURL string) (backends.Backend, error) {
	be, err := om.impl.GetURLBackend(om.Backends, objectURL)
	if err != nil {
		return nil, errors.Wrap(err, "getting URL backend")
	}
	if be == nil {
		return nil, errors.Errorf("no backend enabled for URL %s", objectURL)
	}
	logrus.Debugf("Using %s backend for %s", be.URLPrefix(), objectURL)
	return be, nil
}

// PathExists returns a bool that indicates if a path exists or not
func (om *Manager) PathExists(objectURL string) (bool, error) {
	be, err := om.backend(objectURL)
	if err != nil {
		return false, err
	}
	return be.PathExists(objectURL)
}

func (om *Manager) Read(objectURL string) ([]byte, error) {
	be, err := om.backend(objectURL)
	if err != nil {
		return nil, err
	}
	return be.ReadObject(objectURL)
}

func (om *Manager) Write(objectURL string, data []byte) error {
	be, err := om.backend(objectURL)
	if err != nil {
		return err
	}
	return be.WriteObject(objectURL, data)
}

func (om *Manager) Delete(objectURL string) error {
	be, err := om.backend(objectURL)
	if err != nil {
		return err
	}
	return be.DeleteObject(objectURL)
}

type ManagerImplementation interface {
	GetURLBackend([]backends.Backend, string) (backends.Backend, error)
}

type defaultManagerImpl struct{}

// GetURLBackend returns the backend that can handle a specific URL
func (di *defaultManagerImpl) GetURLBackend(bs []backends.Backend, testURL string) (backends.Backend, error) {
	for _, backend := range bs {
		for _, prefix := range backend.Prefixes() {
			if strings.HasPrefix(testURL, prefix) {
				return backend, nil
			}
		}
	}
	return nil, nil
}

// Preference keys persisted between runs
const (
	KeyToken        = "token"
	KeySelectedRepo = "selected_repo"
)

// Preferences is a small key/value store kept under a location URL,
// one object per key
type Preferences struct {
	Location string
	manager  *Manager
}

// NewPreferences returns a preferences store rooted at location
func NewPreferences(location string) *Preferences {
	return NewPreferencesWithManager(location, NewManager())
}

func NewPreferencesWithManager(location string, manager *Manager) *Preferences {
	return &Preferences{
		Location: strings.TrimSuffix(location, "/"),
		manager:  manager,
	}
}

func (p *Preferences) keyURL(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return "", errors.Errorf("invalid preference key %q", key)
	}
	return p.Location + "/" + key, nil
}

// Get returns the value stored for key, or an empty string when unset
func (p *Preferences) Get(key string) (string, error) {
	u, err := p.keyURL(key)
	if err != nil {
		return "", err
	}
	exists, err := p.manager.PathExists(u)
	if err != nil {
		return "", errors.Wrapf(err, "checking preference %s", key)
	}
	if !exists {
		return "", nil
	}
	data, err := p.manager.Read(u)
	if err != nil {
		// Deleted between the check and the read
		if errors.Is(err, backends.ErrNotExist) {
			return "", nil
		}
		return "", errors.Wrapf(err, "reading preference %s", key)
	}
	return strings.TrimSpace(string(data)), nil
}

func (p *Preferences) Set(key, value string) error {
	u, err := p.keyURL(key)
	if err != nil {
		return err
	}
	logrus.Debugf("Storing preference %s", key)
	return errors.Wrapf(p.manager.Write(u, []byte(value)), "writing preference %s", key)
}

func (p *Preferences) Delete(key string) error {
	u, err := p.keyURL(key)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.manager.Delete(u), "deleting preference %s", key)
}
