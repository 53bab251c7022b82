package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/riley-cms/riley-cms/internal/content"
	"github.com/riley-cms/riley-cms/internal/storage"
)

var (
	lsDrafts bool
	lsFormat string
)

var lsCmd = &cobra.Command{
	Use:       "ls {posts|series|assets}",
	Short:     "List content or assets",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"posts", "series", "assets"},
	RunE:      runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsDrafts, "drafts", false, "include drafts and scheduled items")
	lsCmd.Flags().StringVar(&lsFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch args[0] {
	case "posts", "series":
		contentDir := filepath.Join(cfg.Content.RepoPath, cfg.Content.ContentDir)
		loader := content.NewFSLoader(contentDir, log.New(os.Stderr, "[riley-cms:content] ", log.LstdFlags))
		idx := content.NewIndex(loader)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := idx.Reload(ctx); err != nil {
			return err
		}

		opts := content.ListOptions{IncludeDrafts: lsDrafts, IncludeScheduled: lsDrafts, Limit: 500}
		now := time.Now().UTC()
		if args[0] == "posts" {
			page := idx.ListPosts(opts, now)
			return printLs(cmd, page.Items)
		}
		page := idx.ListSeries(opts, now)
		return printLs(cmd, page.Items)

	case "assets":
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.Storage.Endpoint,
			Bucket:        cfg.Storage.Bucket,
			Region:        cfg.Storage.Region,
			PublicURLBase: cfg.Storage.PublicURLBase,
			UseSSL:        cfg.Storage.Backend != "s3-insecure",
		})
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		result, err := store.List(ctx, storage.ListOptions{})
		if err != nil {
			return err
		}
		return printLs(cmd, result.Assets)

	default:
		return fmt.Errorf("ls: unknown target %q (want posts, series, or assets)", args[0])
	}
}

func printLs(cmd *cobra.Command, v any) error {
	switch lsFormat {
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("ls: unknown --format %q (want json or yaml)", lsFormat)
	}
}
