package cli

import (
	"context"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile    string
	logLevel   string
	rootDir    string
	generation string
	failFast   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plugincheck",
	Short: "plugincheck - plugin registry manifest invariant checker",
	Long: `plugincheck validates a plugin registry checkout: every manifest must match
its schema, and the root manifest, plugin manifests, version manifests and
contract manifests must agree with each other. Contract versions are verified
against a remote source of definitions.

Exits 0 when every invariant holds and 1 otherwise.`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCheck,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext is Execute with a context that cancels in-flight runs
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (toml, json or yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "registry checkout to validate (default from config, \".\")")
	rootCmd.PersistentFlags().StringVar(&generation, "generation", "", "manifest schema generation (v1, v2, v3)")
	rootCmd.PersistentFlags().BoolVar(&failFast, "fail-fast", true, "stop at the first violation")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}
