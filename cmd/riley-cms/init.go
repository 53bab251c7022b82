package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/spf13/cobra"
)

const starterConfig = `[content]
repo_path = "."
content_dir = "content"

[storage]
bucket = "riley-cms-assets"
public_url_base = "https://assets.example.com"

[server]
cors_origins = []

[git]

[webhooks]
on_content_update = []

[auth]
# git_token = "env:RILEY_CMS_GIT_TOKEN"
# api_token = "env:RILEY_CMS_API_TOKEN"
`

const starterPostConfig = `title = "Hello, riley-cms"
preview_text = "The first post in a freshly initialized repository."
`

const starterPostBody = "# Hello, riley-cms\n\nEdit this file, commit, and push to publish.\n"

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Scaffold a new content repository",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	if _, err := git.PlainInit(path, false); err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	if err := os.WriteFile(filepath.Join(path, "riley_cms.toml"), []byte(starterConfig), 0o644); err != nil {
		return err
	}

	samplePostDir := filepath.Join(path, "content", "hello-riley-cms")
	if err := os.MkdirAll(samplePostDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(samplePostDir, "config.toml"), []byte(starterPostConfig), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(samplePostDir, "content.mdx"), []byte(starterPostBody), 0o644); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "initialized riley-cms repository at %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "next: edit riley_cms.toml, commit, and run `riley-cms serve`")
	return nil
}
