package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/spf13/cobra"
)

const releaseRepo = "blackcoderx/apix"

func init() {
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update apix to the latest release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if version == "dev" {
			fmt.Fprintln(out, "You are running a development version of apix. Update is not supported.")
			return nil
		}

		current, err := semver.ParseTolerant(version)
		if err != nil {
			return fmt.Errorf("parse current version %q: %w", version, err)
		}

		latest, found, err := selfupdate.DetectLatest(releaseRepo)
		if err != nil {
			return fmt.Errorf("detect latest version: %w", err)
		}
		if !found || latest.Version.LTE(current) {
			fmt.Fprintln(out, "Current version is the latest")
			return nil
		}

		fmt.Fprintf(out, "Do you want to update to %s? (y/n): ", latest.Version)
		input, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.TrimSpace(strings.ToLower(input)) != "y" {
			return nil
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		if err := selfupdate.UpdateTo(latest.AssetURL, exe); err != nil {
			return fmt.Errorf("update binary: %w", err)
		}
		fmt.Fprintln(out, okStyle.Render("✓")+" updated to version "+latest.Version.String())
		return nil
	},
}
