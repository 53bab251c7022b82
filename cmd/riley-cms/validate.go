package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riley-cms/riley-cms/internal/content"
	"github.com/riley-cms/riley-cms/internal/gitcgi"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the content tree and report structural errors",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := gitcgi.ValidateRepoOpenable(cfg.Content.RepoPath); err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "repo: %v\n", err)
		return errExitCode1
	}

	contentDir := filepath.Join(cfg.Content.RepoPath, cfg.Content.ContentDir)
	loader := content.NewFSLoader(contentDir, log.New(os.Stderr, "[riley-cms:content] ", log.LstdFlags))
	idx := content.NewIndex(loader)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := idx.Reload(ctx); err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "load: %v\n", err)
		return errExitCode1
	}

	issues := idx.Validate()
	if len(issues) == 0 {
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "ok: content tree is structurally valid")
		return nil
	}

	for _, iss := range issues {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "%s\n", iss.Error())
	}
	return errExitCode1
}

// errExitCode1 is a sentinel whose presence as a RunE return value
// signals "exit 1, message already printed" — cobra would otherwise
// print it again via its default error handling, which SilenceErrors
// on rootCmd already suppresses.
var errExitCode1 = fmt.Errorf("validation failed")
