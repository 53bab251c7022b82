// Command riley-cms is the self-hosted content-publishing and
// Git-Smart-HTTP service described by the riley-cms specification: it
// serves published Markdown/MDX content over a JSON API, accepts Git
// pushes that atomically reload the content index, and fans out
// HMAC-signed webhooks on every successful push.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFlag string

var rootCmd = &cobra.Command{
	Use:   "riley-cms",
	Short: "Self-hosted Git-publishing content service",
	Long: `riley-cms serves a Git working tree of Markdown/MDX content as a
JSON API and as a Git Smart HTTP remote in the same process. Pushing to
the service atomically reloads the in-memory content index and notifies
configured webhook endpoints.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFlag, "config", "", "path to riley_cms.toml (default: search per documented order)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
