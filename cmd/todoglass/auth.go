// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type loginOptions struct {
	token string
}

func init() {
	opts := &loginOptions{}
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Store a GitHub credential",
		Long: `Stores a GitHub token until logout. Without --token the GITHUB_TOKEN
environment variable or the configured token is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), opts)
		},
	}
	loginCmd.Flags().StringVar(&opts.token, "token", "", "GitHub token with issues access")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential and repository selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.session.SignOut(); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(ctx context.Context, opts *loginOptions) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	// The configured token already carries the GITHUB_TOKEN override
	token := opts.token
	if token == "" {
		token = conf.GitHub.Token
	}
	if token == "" {
		return errors.New("no token given, use --token or set GITHUB_TOKEN")
	}
	s := newSession(conf)
	if err := s.SignIn(ctx, token); err != nil {
		return err
	}
	snap := s.Snapshot()
	fmt.Printf("Signed in as %s, %d repositories available\n", snap.User.Login, len(snap.Repositories))
	if snap.Selected != nil {
		fmt.Printf("Selected repository: %s\n", snap.Selected.FullName)
	}
	return nil
}
