package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/blackcoderx/apix/pkg/curl"
)

func init() {
	rootCmd.AddCommand(newCurlCmd())
}

func newCurlCmd() *cobra.Command {
	var (
		fromClipboard bool
		into          string
		send          bool
	)
	cmd := &cobra.Command{
		Use:   "curl [flags] ['command' | -- command...]",
		Short: "Turn a cURL command into a draft",
		Long: `Parse a cURL command into a new draft, or into an existing one with --into.
The command is taken from the arguments, the clipboard with --clipboard, or
standard input. Pass it as one quoted argument, or put it after -- so that
its own flags such as -X and -H are not read as apix flags.`,
		Example: `  apix curl 'curl -X POST https://api.example.com/users -d "{\"name\":\"ada\"}"'
  apix curl --send -- -X POST https://api.example.com/users -H 'Accept: application/json'
  pbpaste | apix curl
  apix curl --clipboard --send`,
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := readCurlCommand(cmd, args, fromClipboard)
			if err != nil {
				return err
			}
			req, err := curl.ParseErr(command)
			if err != nil {
				return fmt.Errorf("invalid cURL command: %w", err)
			}

			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				id := into
				if id == "" {
					if id, err = a.store.AddRequest(ctx, ""); err != nil {
						return err
					}
				}
				if err := a.store.ReplaceRequest(id, req); err != nil {
					return err
				}
				if err := a.store.SetActiveRequest(id); err != nil {
					return err
				}
				if err := a.save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", okStyle.Render("✓"), id, dimStyle.Render(string(req.Method)+" "+req.URL))

				if !send {
					return nil
				}
				a.sync(ctx)
				set, err := sendInteractive(cmd, a.store, id, 0)
				if err != nil {
					return err
				}
				printResponse(cmd, set, false)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromClipboard, "clipboard", false, "read the command from the clipboard")
	cmd.Flags().StringVar(&into, "into", "", "overwrite this draft instead of creating one")
	cmd.Flags().BoolVar(&send, "send", false, "send the draft right away")
	return cmd
}

func readCurlCommand(cmd *cobra.Command, args []string, fromClipboard bool) (string, error) {
	switch {
	case len(args) > 0:
		return joinArgs(args), nil
	case fromClipboard:
		text, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("read clipboard: %w", err)
		}
		return text, nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", errors.New("no cURL command given")
		}
		return string(data), nil
	}
}

// joinArgs rebuilds a command line from arguments the shell already split.
// A single argument is the whole command; otherwise arguments holding
// blanks or quotes are re-quoted so they stay one word. The leading "curl"
// may be omitted.
func joinArgs(args []string) string {
	if len(args) == 1 {
		command := strings.TrimSpace(args[0])
		if first, _, _ := strings.Cut(command, " "); !strings.EqualFold(first, "curl") {
			command = "curl " + command
		}
		return command
	}
	words := make([]string, 0, len(args)+1)
	if !strings.EqualFold(args[0], "curl") {
		words = append(words, "curl")
	}
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\n'\"\\") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		words = append(words, arg)
	}
	return strings.Join(words, " ")
}
