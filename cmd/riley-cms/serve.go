package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/riley-cms/riley-cms/internal/auth"
	"github.com/riley-cms/riley-cms/internal/config"
	"github.com/riley-cms/riley-cms/internal/content"
	"github.com/riley-cms/riley-cms/internal/gitcgi"
	"github.com/riley-cms/riley-cms/internal/orchestrator"
	"github.com/riley-cms/riley-cms/internal/server"
	"github.com/riley-cms/riley-cms/internal/storage"
	"github.com/riley-cms/riley-cms/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP + Git Smart HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	path, err := config.Resolve(cfgFlag)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "[riley-cms] ", log.LstdFlags)

	contentDir := filepath.Join(cfg.Content.RepoPath, cfg.Content.ContentDir)
	loader := content.NewFSLoader(contentDir, log.New(os.Stderr, "[riley-cms:content] ", log.LstdFlags))
	index := content.NewIndex(loader)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := index.Reload(startupCtx); err != nil {
		return err
	}

	store, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:      cfg.Storage.Endpoint,
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		PublicURLBase: cfg.Storage.PublicURLBase,
		UseSSL:        cfg.Storage.Endpoint == "" || cfg.Storage.Backend != "s3-insecure",
	})
	if err != nil {
		return err
	}

	apiToken, err := cfg.Auth.APIToken.Resolve()
	if err != nil {
		return err
	}
	gitToken, err := cfg.Auth.GitToken.Resolve()
	if err != nil {
		return err
	}
	checker := auth.New(apiToken, gitToken, log.New(os.Stderr, "[riley-cms:auth] ", log.LstdFlags))

	bridge := gitcgi.NewBridge(gitcgi.Config{
		BackendPath: cfg.Git.BackendPath,
		MaxBodySize: cfg.Git.MaxBodySize,
		CGITimeout:  time.Duration(cfg.Git.CGITimeoutSecs) * time.Second,
	}, log.New(os.Stderr, "[riley-cms:git-cgi] ", log.LstdFlags))

	// A nil secret func means "no secret source configured at all" to
	// Dispatcher, distinct from "configured but resolves empty" (§4.E
	// step 5) — only pass Resolve when a secret was actually set.
	var secret func() (string, error)
	if cfg.Webhooks.Secret.IsSet() {
		secret = cfg.Webhooks.Secret.Resolve
	}
	webhooks := webhook.New(cfg.Webhooks.OnContentUpdate, secret, log.New(os.Stderr, "[riley-cms:webhook] ", log.LstdFlags))

	// srv is filled in below; the orchestrator only calls onWebhookFired
	// after a real push completes, well after New has returned.
	var srv *server.Server
	orch := orchestrator.New(index, webhooks, log.New(os.Stderr, "[riley-cms:orchestrator] ", log.LstdFlags), func() {
		srv.IncWebhookFired()
	})

	srv = server.New(server.Deps{
		Index:        index,
		Store:        store,
		Auth:         checker,
		GitBridge:    bridge,
		Orchestrator: orch,
		Config:       cfg.Server,
		RepoPath:     cfg.Content.RepoPath,
		GitTimeout:   time.Duration(cfg.Git.CGITimeoutSecs) * time.Second,
		Logger:       logger,
	})

	return srv.ListenAndServe()
}
