package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackcoderx/apix/pkg/envstore"
	"github.com/blackcoderx/apix/pkg/storage"
)

func init() {
	rootCmd.AddCommand(newEnvCmd())
}

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "env",
		Aliases: []string{"environment"},
		Short:   "Manage environments and their variables",
	}
	cmd.AddCommand(
		newEnvListCmd(),
		newEnvAddCmd(),
		newEnvSetCmd(),
		newEnvRmCmd(),
		newEnvUnsetCmd(),
		newEnvImportCmd(),
	)
	return cmd
}

// withEnvs runs fn after fetching the environment list.
func withEnvs(ctx context.Context, fn func(a *app) error) error {
	return withApp(ctx, func(a *app) error {
		if err := a.envs.FetchEnvironments(ctx); err != nil {
			return err
		}
		return fn(a)
	})
}

// findEnv resolves an id or name to an environment.
func findEnv(a *app, idOrName string) (storage.Environment, error) {
	env, ok := a.envs.Find(idOrName)
	if !ok {
		return storage.Environment{}, fmt.Errorf("%q: %w", idOrName, envstore.ErrNotFound)
	}
	return env, nil
}

func newEnvListCmd() *cobra.Command {
	var showVars bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List environments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvs(cmd.Context(), func(a *app) error {
				out := cmd.OutOrStdout()
				for _, env := range a.envs.Environments() {
					fmt.Fprintf(out, "%-26s %s %s\n", env.ID, accentStyle.Render(env.Name),
						dimStyle.Render(fmt.Sprintf("(%d variables)", len(env.Variables))))
					if !showVars {
						continue
					}
					for i, v := range env.Variables {
						fmt.Fprintf(out, "    %d  %s=%s\n", i, v.Key, v.Value)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&showVars, "vars", "v", false, "also print variables")
	return cmd
}

func newEnvAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create an empty environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				env, err := a.envs.AddEnvironment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), env.ID)
				return nil
			})
		},
	}
}

func newEnvSetCmd() *cobra.Command {
	var replace string
	cmd := &cobra.Command{
		Use:   "set <env> [KEY=VALUE...]",
		Short: "Set variables of an environment",
		Long: `Set variables of an environment. Existing keys are overwritten in place.
With --json the whole list is replaced by a JSON array of {"key","value"}
objects; malformed entries are dropped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEnvs(ctx, func(a *app) error {
				env, err := findEnv(a, args[0])
				if err != nil {
					return err
				}

				if replace != "" {
					var decoded any
					if err := json.Unmarshal([]byte(replace), &decoded); err != nil {
						return fmt.Errorf("invalid --json: %w", err)
					}
					stored, err := a.envs.UpdateEnvironmentVariables(ctx, env.ID, decoded)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %d variables\n", okStyle.Render("✓"), len(stored))
					return nil
				}

				for _, pair := range args[1:] {
					key, value, err := splitPair(pair, "=")
					if err != nil {
						return err
					}
					if err := a.envs.SetVariable(ctx, env.ID, key, value); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&replace, "json", "", "replace all variables with this JSON array")
	return cmd
}

func newEnvRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <env>",
		Short: "Delete an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvs(cmd.Context(), func(a *app) error {
				env, err := findEnv(a, args[0])
				if err != nil {
					return err
				}
				return a.envs.DeleteEnvironment(cmd.Context(), env.ID)
			})
		},
	}
}

func newEnvUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <env> <index|key>",
		Short: "Delete one variable by position or key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvs(cmd.Context(), func(a *app) error {
				env, err := findEnv(a, args[0])
				if err != nil {
					return err
				}
				return a.envs.DeleteEnvironmentVariable(cmd.Context(), env.ID, variableIndex(env, args[1]))
			})
		},
	}
}

// variableIndex reads ref as a position, then as a key. Unknown keys give
// -1, which the store rejects as an invalid index.
func variableIndex(env storage.Environment, ref string) int {
	if i, err := strconv.Atoi(ref); err == nil {
		return i
	}
	for i, v := range env.Variables {
		if v.Key == ref {
			return i
		}
	}
	return -1
}

func newEnvImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <env> <file>",
		Short: "Merge the variables of a .env file into an environment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvs(cmd.Context(), func(a *app) error {
				env, err := findEnv(a, args[0])
				if err != nil {
					return err
				}
				n, err := a.envs.ImportDotenv(cmd.Context(), env.ID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s imported %d variables into %s\n", okStyle.Render("✓"), n, env.Name)
				return nil
			})
		},
	}
}
