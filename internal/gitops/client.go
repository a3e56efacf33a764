// Package gitops wraps go-git for the checkout and publish sides of a run.
package gitops

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/retry"
)

// Client handles Git operations against a single repository checkout.
type Client struct {
	workspaceDir string
	policy       retry.Policy
	recorder     metrics.Recorder
}

// NewClient creates a new Git client rooted in the given workspace directory.
func NewClient(workspaceDir string) *Client {
	return &Client{workspaceDir: workspaceDir, policy: retry.DefaultPolicy(), recorder: metrics.NoopRecorder{}}
}

// WithRetryPolicy overrides the transient-failure retry policy (fluent helper).
func (c *Client) WithRetryPolicy(p retry.Policy) *Client { c.policy = p; return c }

// WithRecorder forwards retry metrics to the given recorder.
func (c *Client) WithRecorder(r metrics.Recorder) *Client {
	if r != nil {
		c.recorder = r
	}
	return c
}

// CloneRepository clones the configured repository with full history into the
// workspace and returns the checkout path. The publish flow needs every branch
// reachable, so no shallow depth and no single-branch narrowing is applied.
func (c *Client) CloneRepository(ctx context.Context, repo config.Repository) (string, error) {
	var path string
	err := c.withRetry(ctx, "clone", func() error {
		var err error
		path, err = c.cloneOnce(ctx, repo)
		return err
	})
	return path, err
}

func (c *Client) cloneOnce(ctx context.Context, repo config.Repository) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, repo.Name)
	slog.Debug("Cloning repository", logfields.URL(repo.URL), logfields.Branch(repo.Branch), logfields.Path(repoPath))

	// Remove any stale checkout from a previous run.
	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("failed to remove existing directory: %w", err)
	}

	cloneOptions := &git.CloneOptions{URL: repo.URL}
	if repo.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
	}
	auth, err := CreateAuth(repo.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to setup authentication: %w", err)
	}
	cloneOptions.Auth = auth

	repository, err := git.PlainCloneContext(ctx, repoPath, false, cloneOptions)
	if err != nil {
		return "", classifyError("clone", repo.URL, err)
	}

	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Repository cloned", logfields.URL(repo.URL), logfields.Commit(ShortHash(ref.Hash().String())), logfields.Path(repoPath))
	} else {
		slog.Info("Repository cloned", logfields.URL(repo.URL), logfields.Path(repoPath))
	}
	return repoPath, nil
}

// HeadCommit returns the full hash of HEAD in the given checkout.
func HeadCommit(repoPath string) (string, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// ShortHash shortens a commit hash for logs and commit messages.
func ShortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// withRetry runs op, retrying transient failures per the client's policy.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := c.policy.Delay(attempt)
			slog.Warn("Retrying git operation after transient failure",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logfields.Error(lastErr))
			if op == "push" {
				c.recorder.IncPushRetry()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt >= c.policy.MaxRetries {
			return lastErr
		}
	}
}
