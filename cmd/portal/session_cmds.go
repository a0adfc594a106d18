package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/jrsteele09/school-portal/sessions"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a staff email and password",
		Long: `Sign in with a staff email and password. When --password is not
given the password is read from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}

			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errs.Wrapf(errs.ErrInvalidRequest, "read password from stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			creds, err := a.service.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", creds.UserID, creds.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Staff email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}
			a.service.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !a.store.IsAuthenticated() {
				if len(roles) > 0 {
					return errs.Wrapf(errs.ErrNotAuthenticated, "whoami")
				}
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			creds := a.store.Credentials()
			fmt.Fprintf(out, "User: %s\nRole: %s\n", creds.UserID, creds.Role)
			if exp, ok := sessions.TokenExpiry(creds.AccessToken); ok {
				fmt.Fprintf(out, "Access token expires: %s\n", exp.Local().Format(time.RFC1123))
			}

			if len(roles) > 0 && !a.store.HasRole(roles...) {
				return errs.Wrapf(errs.ErrForbidden, "role %q is not one of %q", creds.Role, roles)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&roles, "role", nil, "Fail unless the session has this role (repeatable)")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow session changes made by other processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.App(ctx)
			if err != nil {
				return err
			}
			if a.watch == nil {
				return errs.Wrapf(errs.ErrUnsupported, "watch needs SESSION_STORE=file")
			}

			out := cmd.OutOrStdout()
			unsubscribe := a.store.Subscribe(func(creds sessions.Credentials) {
				if creds.Empty() {
					fmt.Fprintln(out, "Logged out")
					return
				}
				fmt.Fprintf(out, "Logged in as %s (%s)\n", creds.UserID, creds.Role)
			})
			defer unsubscribe()

			log.Info().Str("file", a.cfg.GetSessionFile()).Msg("Watching session")
			return a.watch(ctx, func() {
				if err := a.store.Reload(ctx); err != nil {
					log.Err(err).Msg("Failed to reload session")
				}
			})
		},
	}
}
