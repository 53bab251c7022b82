// Package orchestrator implements the Post-Push Orchestrator (§4.H): it
// owns the CGI completion handle for every Git request, reaping the
// child unconditionally, and on a successful `git-receive-pack` push
// additionally reloads the content index and fires webhooks.
package orchestrator

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/riley-cms/riley-cms/internal/content"
	"github.com/riley-cms/riley-cms/internal/webhook"
)

const reloadTimeout = 30 * time.Second

// Completer is satisfied by *gitcgi.Completion; declared locally so
// this package depends only on the method it needs, not on gitcgi.
type Completer interface {
	Wait(timeout time.Duration) error
}

// Orchestrator wires a reloadable content index to the webhook
// dispatcher, triggered off CGI completion.
type Orchestrator struct {
	index     *content.Index
	webhooks  *webhook.Dispatcher
	logger    *log.Logger
	onWebhook func()
}

// New constructs an Orchestrator. webhooks may be nil if no
// webhooks.on_content_update URLs are configured, in which case Fire is
// a no-op. onWebhookFired, if non-nil, is called once per successful
// trigger right after Fire — the HTTP server uses it to increment its
// /metrics counter without this package depending on prometheus.
func New(index *content.Index, webhooks *webhook.Dispatcher, logger *log.Logger, onWebhookFired func()) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[riley-cms:orchestrator] ", log.LstdFlags)
	}
	return &Orchestrator{index: index, webhooks: webhooks, logger: logger, onWebhook: onWebhookFired}
}

// IsReceivePack reports whether a Git PATH_INFO names the
// git-receive-pack service, the only one that mutates the repository.
func IsReceivePack(pathInfo, queryString string) bool {
	return strings.Contains(pathInfo, "git-receive-pack") || strings.Contains(queryString, "service=git-receive-pack")
}

// HandleCompletion takes ownership of completion in a detached
// goroutine. Every call reaps the child (§5 "unconditional reap"); only
// a receive-pack request that got a 2xx CGI status additionally
// triggers Index.Reload and Webhook.Fire on clean exit.
func (o *Orchestrator) HandleCompletion(completion Completer, isReceivePack bool, statusCode int, cgiTimeout time.Duration) {
	go func() {
		err := completion.Wait(cgiTimeout)

		triggers := isReceivePack && statusCode >= 200 && statusCode < 300
		if !triggers {
			if err != nil {
				o.logger.Printf("git-http-backend child exited with error: %v", err)
			}
			return
		}
		if err != nil {
			o.logger.Printf("post-push completion failed, skipping reload: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		if err := o.index.Reload(ctx); err != nil {
			// Reload failure is logged, never rolled back: the push is
			// already durable in the repo (§4.H).
			o.logger.Printf("post-push reload failed: %v", err)
			return
		}

		if o.webhooks != nil {
			o.webhooks.Fire()
			if o.onWebhook != nil {
				o.onWebhook()
			}
		}
	}()
}
