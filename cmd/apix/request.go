package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackcoderx/apix/pkg/storage"
	"github.com/blackcoderx/apix/pkg/store"
)

func init() {
	rootCmd.AddCommand(newRequestCmd())
}

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"req"},
		Short:   "Create, edit and send request drafts",
	}
	cmd.AddCommand(
		newRequestNewCmd(),
		newRequestListCmd(),
		newRequestShowCmd(),
		newRequestSetCmd(),
		newRequestRmCmd(),
		newRequestUseCmd(),
		newRowCmd("header"),
		newRowCmd("param"),
		newFieldCmd(),
		newRequestSendCmd(),
	)
	return cmd
}

func newRequestNewCmd() *cobra.Command {
	var collectionID string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a GET draft and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				if collectionID != "" {
					a.sync(ctx)
				}
				id, addErr := a.store.AddRequest(ctx, collectionID)
				if id != "" {
					if err := applyRequestFlags(cmd, a, id); err != nil {
						return err
					}
					if err := a.save(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return addErr
			})
		},
	}
	cmd.Flags().StringVarP(&collectionID, "collection", "c", "", "also save the draft into this collection")
	addRequestFlags(cmd)
	return cmd
}

func newRequestListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the drafts of the workspace",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				st := a.store.Snapshot()
				out := cmd.OutOrStdout()
				for _, r := range st.Requests {
					marker := "  "
					if r.ID == st.ActiveRequestID {
						marker = accentStyle.Render("*") + " "
					}
					fmt.Fprintf(out, "%s%-10s %-7s %s %s\n", marker, r.ID, r.Method, r.URL, dimStyle.Render(r.Name))
				}
				return nil
			})
		},
	}
}

func newRequestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a draft, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID(args)
				if err != nil {
					return err
				}
				req, ok := a.store.Snapshot().Request(id)
				if !ok {
					return fmt.Errorf("request %q: %w", id, store.ErrNotFound)
				}
				renderMarkdown(cmd.OutOrStdout(), requestMarkdown(req))
				return nil
			})
		},
	}
}

func newRequestSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [id]",
		Short: "Edit a draft, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID(args)
				if err != nil {
					return err
				}
				if _, ok := a.store.Snapshot().Request(id); !ok {
					return fmt.Errorf("request %q: %w", id, store.ErrNotFound)
				}
				if cmd.Flags().Changed("env") {
					a.sync(cmd.Context())
				}
				if err := applyRequestFlags(cmd, a, id); err != nil {
					return err
				}
				return a.save()
			})
		},
	}
	addRequestFlags(cmd)
	return cmd
}

// addRequestFlags registers the draft fields editable from the command line.
func addRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "display name")
	f.StringP("method", "X", "", "HTTP method")
	f.StringP("url", "u", "", "URL, may contain {{variables}}")
	f.StringP("body", "d", "", "text body")
	f.String("body-file", "", "read the text body from a file")
	f.String("body-type", "", "none, form-data, x-www-form-urlencoded, raw, binary or GraphQL")
	f.String("raw-type", "", "Text, JavaScript, JSON, HTML or XML")
	f.String("env", "", "environment id or name used for {{variables}}")
	f.String("auth", "", "none, basic, bearer, oauth2 or apikey")
	f.String("basic", "", "basic credentials as user:password")
	f.String("bearer", "", "bearer token")
	f.String("oauth2-token", "", "OAuth 2.0 access token")
	f.String("oauth2-type", "Bearer", "OAuth 2.0 token type")
	f.String("apikey", "", "API key as name=value")
	f.String("apikey-in", string(storage.APIKeyInHeader), "where the API key goes: header or query")
}

// applyRequestFlags turns the flags set on cmd into a patch for id.
func applyRequestFlags(cmd *cobra.Command, a *app, id string) error {
	req, ok := a.store.Snapshot().Request(id)
	if !ok {
		return fmt.Errorf("request %q: %w", id, store.ErrNotFound)
	}
	p, err := requestPatch(cmd, req)
	if err != nil {
		return err
	}
	if p.EnvironmentID != nil {
		if env, ok := a.envs.Find(*p.EnvironmentID); ok {
			p.EnvironmentID = &env.ID
		}
	}
	a.store.UpdateRequest(id, p)
	return nil
}

func requestPatch(cmd *cobra.Command, current *storage.Request) (storage.RequestPatch, error) {
	var p storage.RequestPatch
	p.Name = changedString(cmd, "name")
	p.URL = changedString(cmd, "url")
	p.EnvironmentID = changedString(cmd, "env")

	if v := changedString(cmd, "method"); v != nil {
		m, err := storage.ParseMethod(*v)
		if err != nil {
			return p, err
		}
		p.Method = &m
	}
	if v := changedString(cmd, "body-type"); v != nil {
		bt, err := storage.ParseBodyType(*v)
		if err != nil {
			return p, err
		}
		p.BodyType = &bt
	}
	if v := changedString(cmd, "raw-type"); v != nil {
		rt, err := storage.ParseRawType(*v)
		if err != nil {
			return p, err
		}
		p.RawType = &rt
	}

	body := changedString(cmd, "body")
	if path := changedString(cmd, "body-file"); path != nil {
		data, err := os.ReadFile(*path)
		if err != nil {
			return p, fmt.Errorf("read body: %w", err)
		}
		text := string(data)
		body = &text
	}
	if body != nil {
		p.Body = storage.TextBody(*body)
		bt := current.BodyType
		if p.BodyType != nil {
			bt = *p.BodyType
		}
		if !storage.BodyMatches(bt, p.Body) {
			raw := storage.BodyRaw
			p.BodyType = &raw
		}
	}

	if v := changedString(cmd, "auth"); v != nil {
		at, err := storage.ParseAuthType(*v)
		if err != nil {
			return p, err
		}
		p.AuthType = &at
	}
	a, err := authFromFlags(cmd)
	if err != nil {
		return p, err
	}
	p.Auth = a
	return p, nil
}

// authFromFlags builds credentials from whichever credential flag is set.
func authFromFlags(cmd *cobra.Command) (storage.Auth, error) {
	if v := changedString(cmd, "basic"); v != nil {
		user, pass, err := splitPair(*v, ":")
		if err != nil {
			return nil, err
		}
		return storage.BasicAuth{Username: user, Password: pass}, nil
	}
	if v := changedString(cmd, "bearer"); v != nil {
		return storage.BearerAuth{Token: *v}, nil
	}
	if v := changedString(cmd, "oauth2-token"); v != nil {
		tokenType, _ := cmd.Flags().GetString("oauth2-type")
		return storage.OAuth2Auth{AccessToken: *v, TokenType: tokenType}, nil
	}
	if v := changedString(cmd, "apikey"); v != nil {
		key, value, err := splitPair(*v, "=")
		if err != nil {
			return nil, err
		}
		in, _ := cmd.Flags().GetString("apikey-in")
		loc := storage.APIKeyLocation(in)
		if loc != storage.APIKeyInHeader && loc != storage.APIKeyInQuery {
			return nil, fmt.Errorf("--apikey-in must be header or query, got %q", in)
		}
		return storage.APIKeyAuth{Key: key, Value: value, AddTo: loc}, nil
	}
	return nil, nil
}

func newRequestRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if _, ok := a.store.Snapshot().Request(args[0]); !ok {
					return fmt.Errorf("request %q: %w", args[0], store.ErrNotFound)
				}
				a.store.RemoveRequest(args[0])
				return a.save()
			})
		},
	}
}

func newRequestUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a draft the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if err := a.store.SetActiveRequest(args[0]); err != nil {
					return err
				}
				return a.save()
			})
		},
	}
}

func newRequestSendCmd() *cobra.Command {
	var step int
	var raw bool
	cmd := &cobra.Command{
		Use:   "send [id]",
		Short: "Send a draft through the proxy and show the response",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				id, err := a.requestID(args)
				if err != nil {
					return err
				}
				a.sync(ctx)
				set, err := sendInteractive(cmd, a.store, id, step)
				if err != nil {
					return err
				}
				printResponse(cmd, set, raw)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "show this step (1-based) of a redirect chain instead of the last")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the body without formatting")
	return cmd
}

// sendAndSelect sends id and, for step > 0, selects that step of the
// returned chain.
func sendAndSelect(ctx context.Context, s *store.Store, id string, step int) (storage.ResponseSet, error) {
	if err := s.SendRequest(ctx, id); err != nil {
		return storage.ResponseSet{}, err
	}
	if step > 0 {
		if err := s.SelectResponse(id, step-1); err != nil {
			return storage.ResponseSet{}, err
		}
	}
	set, _ := s.Snapshot().Response(id)
	return set, nil
}

// sendInteractive sends id, with a spinner and a step picker for chains
// when stdout is a terminal.
func sendInteractive(cmd *cobra.Command, s *store.Store, id string, step int) (storage.ResponseSet, error) {
	ctx, out := cmd.Context(), cmd.OutOrStdout()
	if !isTerminal(out) {
		return sendAndSelect(ctx, s, id, step)
	}

	label := "sending " + id
	if req, ok := s.Snapshot().Request(id); ok {
		label = fmt.Sprintf("sending %s %s", req.Method, req.URL)
	}
	set, err := sendWithSpinner(ctx, out, label, func(ctx context.Context) (storage.ResponseSet, error) {
		return sendAndSelect(ctx, s, id, step)
	})
	if err != nil || step > 0 || set.Len() < 2 {
		return set, err
	}

	index, ok, err := pickStep(out, set)
	if err != nil || !ok {
		return set, err
	}
	if err := s.SelectResponse(id, index); err != nil {
		return set, err
	}
	set, _ = s.Snapshot().Response(id)
	return set, nil
}

func printResponse(cmd *cobra.Command, set storage.ResponseSet, raw bool) {
	out := cmd.OutOrStdout()
	r, ok := set.Current()
	if !ok {
		fmt.Fprintln(out, dimStyle.Render("no response"))
		return
	}
	fmt.Fprintln(out, statusLine(r))
	if raw {
		fmt.Fprintln(out, string(r.Body))
		return
	}
	renderMarkdown(out, responseMarkdown(set))
}
