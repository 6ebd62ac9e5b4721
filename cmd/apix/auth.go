package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/blackcoderx/apix/pkg/auth"
	"github.com/blackcoderx/apix/pkg/storage"
)

func init() {
	rootCmd.AddCommand(newAuthCmd())
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Fetch and inspect credentials",
	}
	cmd.AddCommand(newAuthOAuth2Cmd(), newAuthJWTCmd(), newAuthBasicCmd())
	return cmd
}

func newAuthOAuth2Cmd() *cobra.Command {
	var (
		p         auth.OAuth2Params
		flow      string
		requestID string
		apply     bool
	)
	cmd := &cobra.Command{
		Use:   "oauth2",
		Short: "Fetch an OAuth 2.0 access token",
		Long: `Fetch an OAuth 2.0 access token with the client_credentials or password
grant. With --apply the token becomes the oauth2 auth of a draft.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Flow = auth.Flow(flow)
			tok, err := auth.FetchOAuth2Token(cmd.Context(), p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", accentStyle.Render(tok.Auth.TokenType), tok.Auth.AccessToken)
			if !tok.Expiry.IsZero() {
				fmt.Fprintln(out, dimStyle.Render("expires "+tok.Expiry.Format(time.RFC3339)))
			}
			if tok.RefreshToken != "" {
				fmt.Fprintln(out, dimStyle.Render("refresh token "+tok.RefreshToken))
			}

			if !apply {
				return nil
			}
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID([]string{requestID})
				if err != nil {
					return err
				}
				if _, ok := a.store.Snapshot().Request(id); !ok {
					return fmt.Errorf("request %q not found", id)
				}
				a.store.UpdateRequest(id, storage.RequestPatch{Auth: tok.Auth})
				fmt.Fprintf(out, "%s applied to %s\n", okStyle.Render("✓"), id)
				return a.save()
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&flow, "flow", string(auth.FlowClientCredentials), "client_credentials or password")
	f.StringVar(&p.TokenURL, "token-url", "", "token endpoint")
	f.StringVar(&p.ClientID, "client-id", "", "client ID")
	f.StringVar(&p.ClientSecret, "client-secret", "", "client secret")
	f.StringSliceVar(&p.Scopes, "scope", nil, "scopes to request")
	f.StringVar(&p.Username, "username", "", "resource owner, password flow")
	f.StringVar(&p.Password, "password", "", "resource owner password, password flow")
	f.BoolVar(&apply, "apply", false, "store the token on a draft")
	f.StringVarP(&requestID, "request", "r", "", "draft for --apply, the active one by default")
	return cmd
}

func newAuthJWTCmd() *cobra.Command {
	var fromClipboard bool
	cmd := &cobra.Command{
		Use:   "jwt [token]",
		Short: "Decode a JWT without verifying it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			switch {
			case len(args) == 1:
				token = args[0]
			case fromClipboard:
				text, err := clipboard.ReadAll()
				if err != nil {
					return fmt.Errorf("read clipboard: %w", err)
				}
				token = text
			default:
				return fmt.Errorf("give a token or use --clipboard")
			}

			j, err := auth.ParseJWT(token)
			if err != nil {
				return err
			}
			md, err := jwtMarkdown(j, time.Now())
			if err != nil {
				return err
			}
			renderMarkdown(cmd.OutOrStdout(), md)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromClipboard, "clipboard", false, "read the token from the clipboard")
	return cmd
}

// jwtMarkdown renders the decoded parts of j and its validity at now.
func jwtMarkdown(j auth.JWT, now time.Time) (string, error) {
	header, err := json.MarshalIndent(j.Header, "", "  ")
	if err != nil {
		return "", err
	}
	claims, err := json.MarshalIndent(j.Claims, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Header\n\n```json\n%s\n```\n\n### Claims\n\n```json\n%s\n```\n\n", header, claims)
	if sub := j.Subject(); sub != "" {
		fmt.Fprintf(&b, "- **subject:** %s\n", sub)
	}
	if iat, ok := j.IssuedAt(); ok {
		fmt.Fprintf(&b, "- **issued:** %s\n", iat.Format(time.RFC3339))
	}
	if exp, ok := j.ExpiresAt(); ok {
		state := "valid"
		if j.Expired(now) {
			state = "**expired**"
		}
		fmt.Fprintf(&b, "- **expires:** %s (%s)\n", exp.Format(time.RFC3339), state)
	}
	b.WriteString("\n_signature not verified_\n")
	return b.String(), nil
}

func newAuthBasicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "basic <credentials>",
		Short: "Decode a Basic auth value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, password, err := auth.DecodeBasic(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "username: %s\npassword: %s\n", user, password)
			return nil
		},
	}
}
