package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// changedString returns the flag's value only when it was set on the
// command line.
func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func changedBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

// splitPair splits "key<sep>value", trimming the key.
func splitPair(s, sep string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, sep)
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key%svalue, got %q", sep, s)
	}
	return key, value, nil
}
