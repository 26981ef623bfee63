// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattermost/todoglass/pkg/autosave"
	"github.com/mattermost/todoglass/pkg/github"
	"github.com/mattermost/todoglass/pkg/store/backends"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"sigs.k8s.io/release-utils/util"
)

const appName = "todoglass"

// DefaultPath returns the location of the user's configuration file
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// DefaultStateLocation is where preferences are kept when none is configured
func DefaultStateLocation() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return backends.URLPrefixFilesystem + filepath.Join(dir, appName, "state")
}

type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Autosave AutosaveConfig `yaml:"autosave"`
	State    StateConfig    `yaml:"state"`
	Log      LogConfig      `yaml:"log"`
}

type GitHubConfig struct {
	APIURL    string `yaml:"api_url"`
	Token     string `yaml:"token"`
	PerPage   int    `yaml:"per_page"`
	UserAgent string `yaml:"user_agent"`
}

type AutosaveConfig struct {
	Debounce time.Duration `yaml:"debounce"`  // Quiet period before an edit is saved
	SavedAck time.Duration `yaml:"saved_ack"` // How long the saved acknowledgment lasts
}

type StateConfig struct {
	Location string `yaml:"location"` // file:// or s3:// URL
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every value set to its default
func Default() *Config {
	conf := &Config{}
	conf.setDefaults()
	return conf
}

// Load reads a config file and returns a config object. An empty path
// loads the default file if it exists. The GITHUB_TOKEN environment
// variable overrides the configured token.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if path == "" {
		if def := DefaultPath(); def != "" && util.Exists(def) {
			path = def
		}
	}
	if path != "" {
		yamlData, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading configuration file")
		}
		if err := yaml.Unmarshal(yamlData, conf); err != nil {
			return nil, errors.Wrap(err, "parsing config yaml data")
		}
		logrus.Debugf("Loaded configuration from %s", path)
	}
	conf.setDefaults()
	if token := github.TokenFromEnv(); token != "" {
		conf.GitHub.Token = token
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating configuration")
	}
	return conf, nil
}

func (conf *Config) setDefaults() {
	if conf.GitHub.APIURL == "" {
		conf.GitHub.APIURL = github.DefaultAPIURL
	}
	if conf.GitHub.PerPage == 0 {
		conf.GitHub.PerPage = github.DefaultPerPage
	}
	if conf.GitHub.UserAgent == "" {
		conf.GitHub.UserAgent = github.DefaultUserAgent
	}
	if conf.Autosave.Debounce == 0 {
		conf.Autosave.Debounce = autosave.DefaultDebounce
	}
	if conf.Autosave.SavedAck == 0 {
		conf.Autosave.SavedAck = autosave.DefaultAckDuration
	}
	if conf.State.Location == "" {
		conf.State.Location = DefaultStateLocation()
	}
	if conf.Log.Level == "" {
		conf.Log.Level = logrus.InfoLevel.String()
	}
}

// Validate checks the configuration values to make sure they are usable
func (conf *Config) Validate() error {
	if !strings.HasPrefix(conf.GitHub.APIURL, "http://") && !strings.HasPrefix(conf.GitHub.APIURL, "https://") {
		return errors.Errorf("github api_url %q is not an http(s) URL", conf.GitHub.APIURL)
	}
	if conf.GitHub.PerPage < 1 || conf.GitHub.PerPage > 100 {
		return errors.Errorf("github per_page must be between 1 and 100, got %d", conf.GitHub.PerPage)
	}
	if conf.Autosave.Debounce < 0 {
		return errors.New("autosave debounce cannot be negative")
	}
	if conf.Autosave.SavedAck < 0 {
		return errors.New("autosave saved_ack cannot be negative")
	}
	if !strings.HasPrefix(conf.State.Location, backends.URLPrefixFilesystem) &&
		!strings.HasPrefix(conf.State.Location, backends.URLPrefixS3) {
		return errors.Errorf("state location %q must be a file:// or s3:// URL", conf.State.Location)
	}
	if _, err := logrus.ParseLevel(conf.Log.Level); err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	return nil
}

// GitHubOptions returns the client options described by the configuration
func (conf *Config) GitHubOptions(token string) *github.Options {
	return &github.Options{
		Token:     token,
		APIURL:    conf.GitHub.APIURL,
		PerPage:   conf.GitHub.PerPage,
		UserAgent: conf.GitHub.UserAgent,
	}
}

// AutosaveOptions returns the reconciler timings from the configuration
func (conf *Config) AutosaveOptions() *autosave.Options {
	return &autosave.Options{
		Debounce:    conf.Autosave.Debounce,
		AckDuration: conf.Autosave.SavedAck,
	}
}
