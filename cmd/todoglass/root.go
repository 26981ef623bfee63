// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"context"

	"github.com/mattermost/todoglass/pkg/config"
	"github.com/mattermost/todoglass/pkg/github"
	"github.com/mattermost/todoglass/pkg/session"
	"github.com/mattermost/todoglass/pkg/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in, run: todoglass login")

type rootOptions struct {
	configPath string
	verbose    bool
}

var rootOpts = &rootOptions{}

var rootCmd = &cobra.Command{
	Use:   "todoglass",
	Short: "Manage a personal todo list kept as GitHub issues",
	Long: `todoglass keeps a todo list in the issues of a GitHub repository.

Due dates are stored as a "Due: YYYY-MM-DD" line at the top of the issue
body. Issues can block each other and be grouped as sub-issues.

Example:
  todoglass login --token $GITHUB_TOKEN
  todoglass select octocat/todo
  todoglass new "Buy milk" --due 2024-03-01`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootOpts.verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/todoglass/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "enable debug logging")
}

// app bundles the configuration and the session used by every command
type app struct {
	conf    *config.Config
	session *session.Session
}

// loadConfig reads the configuration and applies its log level
func loadConfig() (*config.Config, error) {
	conf, err := config.Load(rootOpts.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	if !rootOpts.verbose {
		level, err := logrus.ParseLevel(conf.Log.Level)
		if err != nil {
			return nil, errors.Wrap(err, "parsing log level")
		}
		logrus.SetLevel(level)
	}
	return conf, nil
}

func newSession(conf *config.Config) *session.Session {
	return session.NewWithOptions(store.NewPreferences(conf.State.Location), &session.Options{
		NewClient: func(token string) *github.GitHub {
			return github.NewWithOptions(conf.GitHubOptions(token))
		},
		Autosave: conf.AutosaveOptions(),
		Token:    conf.GitHub.Token,
	})
}

// newApp loads the configuration and restores the stored session
func newApp(ctx context.Context) (*app, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := newSession(conf)
	if err := s.Bootstrap(ctx); err != nil {
		return nil, errors.Wrap(err, "restoring session")
	}
	return &app{conf: conf, session: s}, nil
}

// requireRepo returns an error when no repository is selected
func (a *app) requireRepo() error {
	if a.session.Snapshot().Selected == nil {
		return errors.New("no repository selected, run: todoglass select OWNER/NAME")
	}
	return nil
}

func parseIssueNumbers(args ...string) ([]int, error) {
	numbers := []int{}
	for _, arg := range args {
		n, err := github.ParseIssueNumber(arg)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}
