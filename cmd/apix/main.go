package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackcoderx/apix/pkg/core"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	workspace string
	rootCmd   = &cobra.Command{
		Use:   "apix",
		Short: "apix - an API explorer in your terminal",
		Long: `apix keeps a workspace of request drafts, sends them through the apix
proxy and organises them into collections and environments.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if it exists (optional, warn if malformed)
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load .env file: %v\n", err)
			}

			if err := core.InitializeFolder(".", cmd.ErrOrStderr()); err != nil {
				return fmt.Errorf("error initializing config folder: %w", err)
			}

			// first run creates config.json after initConfig's read
			_ = viper.ReadInConfig()
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .apix/config.json)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace to operate on")
	_ = viper.BindPFlag(core.KeyWorkspace, rootCmd.PersistentFlags().Lookup("workspace"))
}

func initConfig() {
	core.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(core.FolderName)
		viper.SetConfigType("json")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("APIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}
