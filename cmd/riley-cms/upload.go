package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riley-cms/riley-cms/internal/storage"
)

var uploadDest string

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a local file to the configured asset store",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadDest, "prefix", "p", "", "destination key (default: the file's base name)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	srcPath := args[0]
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	key := uploadDest
	if key == "" {
		key = filepath.Base(srcPath)
	}

	contentType := mime.TypeByExtension(filepath.Ext(srcPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	asset, err := store.Upload(ctx, key, f, fi.Size(), contentType)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "uploaded %s\n", asset.Key)
	fmt.Fprintf(cmd.OutOrStdout(), "url: %s\nsize: %d\n", asset.URL, asset.Size)
	return nil
}
