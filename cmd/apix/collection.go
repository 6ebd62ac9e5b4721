package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackcoderx/apix/pkg/storage"
	"github.com/blackcoderx/apix/pkg/store"
)

func init() {
	rootCmd.AddCommand(newCollectionCmd())
}

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"col"},
		Short:   "Group drafts into collections, export and import them",
	}
	cmd.AddCommand(
		newCollectionListCmd(),
		newCollectionAddCmd(),
		newCollectionRenameCmd(),
		newCollectionRmCmd(),
		newCollectionAttachCmd(),
		newCollectionExportCmd(),
		newCollectionImportCmd(),
	)
	return cmd
}

// findCollection resolves an id, then a case-insensitive name.
func findCollection(st store.State, ref string) (storage.Collection, error) {
	if c, ok := st.Collection(ref); ok {
		return c, nil
	}
	for _, c := range st.Collections {
		if strings.EqualFold(c.Name, ref) {
			return c, nil
		}
	}
	return storage.Collection{}, fmt.Errorf("collection %q: %w", ref, store.ErrNotFound)
}

func newCollectionListCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				a.sync(cmd.Context())
				out := cmd.OutOrStdout()
				for _, c := range a.store.Snapshot().Collections {
					fmt.Fprintf(out, "%-36s %s %s\n", c.ID, accentStyle.Render(c.Name),
						dimStyle.Render(fmt.Sprintf("(%d requests)", len(c.Requests))))
					if !verbose {
						continue
					}
					for _, r := range c.Requests {
						fmt.Fprintf(out, "    %-7s %s %s\n", r.Method, r.URL, dimStyle.Render(r.Name))
					}
				}
				return a.save()
			})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list each collection's requests")
	return cmd
}

func newCollectionAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				a.sync(cmd.Context())
				c, err := a.store.AddCollection(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.ID)
				return a.save()
			})
		},
	}
}

func newCollectionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <collection> <name>",
		Short: "Rename a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				a.sync(cmd.Context())
				c, err := findCollection(a.store.Snapshot(), args[0])
				if err != nil {
					return err
				}
				if err := a.store.RenameCollection(cmd.Context(), c.ID, args[1]); err != nil {
					return err
				}
				return a.save()
			})
		},
	}
}

func newCollectionRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <collection>",
		Short: "Delete a collection; its drafts are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				a.sync(cmd.Context())
				c, err := findCollection(a.store.Snapshot(), args[0])
				if err != nil {
					return err
				}
				if err := a.store.RemoveCollection(cmd.Context(), c.ID); err != nil {
					return err
				}
				return a.save()
			})
		},
	}
}

func newCollectionAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <collection> [request-id]",
		Short: "Save a draft, the active one by default, into a collection",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				a.sync(cmd.Context())
				c, err := findCollection(a.store.Snapshot(), args[0])
				if err != nil {
					return err
				}
				id, err := a.requestID(args[1:])
				if err != nil {
					return err
				}
				if err := a.store.AddRequestToCollection(cmd.Context(), c.ID, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s saved to %s\n", okStyle.Render("✓"), id, c.Name)
				return a.save()
			})
		},
	}
}

func newCollectionExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <collection>",
		Short: "Write a collection as <name>_collection.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				a.sync(cmd.Context())
				c, err := findCollection(a.store.Snapshot(), args[0])
				if err != nil {
					return err
				}
				filename, data, err := a.store.ExportCollection(c.ID)
				if err != nil {
					return err
				}
				if output == "-" {
					_, err := cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if output != "" {
					filename = output
				}
				if err := os.WriteFile(filename, data, 0644); err != nil {
					return fmt.Errorf("write %s: %w", filename, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("✓"), filename)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `file to write, "-" for stdout`)
	return cmd
}

func newCollectionImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Merge collections from an exported file",
		Long: `Merge collections from an exported file. Collections are matched by id and
requests within them by id; only new ones are added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			return withApp(cmd.Context(), func(a *app) error {
				a.sync(cmd.Context())
				res, err := a.store.ImportCollections(r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d collections, %d requests added\n",
					okStyle.Render("✓"), res.Collections, res.Requests)
				return a.save()
			})
		},
	}
}
