package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackcoderx/apix/pkg/storage"
	"github.com/blackcoderx/apix/pkg/store"
)

// rowOps binds the header or param operations of the store.
type rowOps struct {
	add    func(s *store.Store, requestID string) (string, error)
	update func(s *store.Store, requestID, rowID string, p store.RowPatch) error
	remove func(s *store.Store, requestID, rowID string) error
}

var rowKinds = map[string]rowOps{
	"header": {
		add:    (*store.Store).AddHeader,
		update: (*store.Store).UpdateHeader,
		remove: (*store.Store).RemoveHeader,
	},
	"param": {
		add:    (*store.Store).AddParameter,
		update: (*store.Store).UpdateParameter,
		remove: (*store.Store).RemoveParameter,
	},
}

// newRowCmd builds "request header" or "request param".
func newRowCmd(kind string) *cobra.Command {
	ops := rowKinds[kind]
	var requestID string

	cmd := &cobra.Command{
		Use:   kind,
		Short: fmt.Sprintf("Edit the %s rows of a draft", kind),
	}
	cmd.PersistentFlags().StringVarP(&requestID, "request", "r", "", "draft to edit, the active one by default")

	add := &cobra.Command{
		Use:   "add <name> [value]",
		Short: fmt.Sprintf("Append an enabled %s row", kind),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID([]string{requestID})
				if err != nil {
					return err
				}
				rowID, err := ops.add(a.store, id)
				if err != nil {
					return err
				}
				p := store.RowPatch{Name: &args[0]}
				if len(args) > 1 {
					p.Value = &args[1]
				}
				if err := ops.update(a.store, id, rowID, p); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rowID)
				return a.save()
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <row-id>",
		Short: fmt.Sprintf("Change a %s row", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID([]string{requestID})
				if err != nil {
					return err
				}
				p := store.RowPatch{
					Name:    changedString(cmd, "name"),
					Value:   changedString(cmd, "value"),
					Enabled: changedBool(cmd, "enabled"),
				}
				if err := ops.update(a.store, id, args[0], p); err != nil {
					return err
				}
				return a.save()
			})
		},
	}
	set.Flags().String("name", "", "row name")
	set.Flags().String("value", "", "row value")
	set.Flags().Bool("enabled", true, "whether the row is sent")

	rm := &cobra.Command{
		Use:   "rm <row-id>",
		Short: fmt.Sprintf("Delete a %s row", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID([]string{requestID})
				if err != nil {
					return err
				}
				if err := ops.remove(a.store, id, args[0]); err != nil {
					return err
				}
				return a.save()
			})
		},
	}

	cmd.AddCommand(add, set, rm)
	return cmd
}

// newFieldCmd builds "request field" for form bodies.
func newFieldCmd() *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Edit the form fields of a form-data or urlencoded draft",
	}
	cmd.PersistentFlags().StringVarP(&requestID, "request", "r", "", "draft to edit, the active one by default")

	add := &cobra.Command{
		Use:   "add <key> [value]",
		Short: "Append a text field",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID([]string{requestID})
				if err != nil {
					return err
				}
				fieldID, err := a.store.AddBodyField(id)
				if err != nil {
					return err
				}
				p := store.FieldPatch{Key: &args[0]}
				if len(args) > 1 {
					p.Value = &args[1]
				}
				if file, _ := cmd.Flags().GetBool("file"); file {
					t := storage.FieldFile
					p.Type = &t
				}
				if err := a.store.UpdateBodyField(id, fieldID, p); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), fieldID)
				return a.save()
			})
		},
	}
	add.Flags().Bool("file", false, "the value is a file path")

	set := &cobra.Command{
		Use:   "set <field-id>",
		Short: "Change a form field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID([]string{requestID})
				if err != nil {
					return err
				}
				p := store.FieldPatch{
					Key:   changedString(cmd, "key"),
					Value: changedString(cmd, "value"),
				}
				if v := changedString(cmd, "type"); v != nil {
					t := storage.FieldType(*v)
					if t != storage.FieldText && t != storage.FieldFile {
						return fmt.Errorf("--type must be text or file, got %q", *v)
					}
					p.Type = &t
				}
				if err := a.store.UpdateBodyField(id, args[0], p); err != nil {
					return err
				}
				return a.save()
			})
		},
	}
	set.Flags().String("key", "", "field key")
	set.Flags().String("value", "", "field value")
	set.Flags().String("type", "", "text or file")

	rm := &cobra.Command{
		Use:   "rm <field-id>",
		Short: "Delete a form field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID([]string{requestID})
				if err != nil {
					return err
				}
				if err := a.store.RemoveBodyField(id, args[0]); err != nil {
					return err
				}
				return a.save()
			})
		},
	}

	cmd.AddCommand(add, set, rm)
	return cmd
}
