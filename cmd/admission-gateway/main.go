// Command admission-gateway serves HTTP behind the admission rate limiter and offers a
// check command to exercise a configured policy from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.0.1"

type rootFlags struct {
	ConfigDir string
	EnvPrefix string
}

func newRootCmd() *cobra.Command {
	root := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "admission-gateway",
		Short:         "Rate-limiting admission gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&root.ConfigDir, "config-dir", "./configs", "directory of config.yaml and <env>.yaml")
	cmd.PersistentFlags().StringVar(&root.EnvPrefix, "env-prefix", "ADMISSION", "prefix of environment overrides")

	cmd.AddCommand(newServeCmd(root), newCheckCmd(root))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
