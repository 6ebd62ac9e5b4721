package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackcoderx/apix/pkg/client"
)

func init() {
	rootCmd.AddCommand(newLoginCmd(), newLogoutCmd(), newWhoamiCmd())
}

func newLoginCmd() *cobra.Command {
	var (
		creds    client.Credentials
		register bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the apix backend",
		Long: `Log in to the apix backend. Missing credentials are prompted for. The
session is kept in .apix/session.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptCredentials(&creds, register); err != nil {
				return err
			}

			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				login := a.api.Login
				if register {
					login = a.api.Register
				}
				session, err := login(ctx, creds)
				if err != nil {
					return err
				}
				if err := client.SaveSession(a.sessionPath, session); err != nil {
					return err
				}

				name := creds.Email
				if session.User != nil && session.User.Name != "" {
					name = session.User.Name
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s logged in as %s\n", okStyle.Render("✓"), name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&creds.Name, "name", "", "display name, with --register")
	cmd.Flags().BoolVar(&register, "register", false, "create the account first")
	return cmd
}

// promptCredentials asks for whichever credentials were not given as flags.
func promptCredentials(creds *client.Credentials, register bool) error {
	var fields []huh.Field
	if creds.Email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(&creds.Email).
			Validate(func(s string) error {
				if !strings.Contains(s, "@") {
					return errors.New("enter an email address")
				}
				return nil
			}))
	}
	if register && creds.Name == "" {
		fields = append(fields, huh.NewInput().Title("Name").Value(&creds.Name))
	}
	if creds.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&creds.Password))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the backend session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if a.api.LoggedIn() {
					// the local session is dropped even when the backend call fails
					if err := a.api.Logout(cmd.Context()); err != nil {
						a.logger.Warn("backend logout failed", zap.Error(err))
					}
				}
				if err := client.ClearSession(a.sessionPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s logged out\n", okStyle.Render("✓"))
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				user, err := a.api.Me(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", accentStyle.Render(user.Name), dimStyle.Render(user.Email))
				return nil
			})
		},
	}
}
