package gitops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/logfields"
)

// PublishRequest describes one publishing-branch mutation.
type PublishRequest struct {
	CheckoutPath string             // working checkout (currently on the source branch)
	OutputPath   string             // absolute path of fresh generator output
	SourceCommit string             // commit the output was built from
	Publish      config.PublishConfig
	Auth         *config.AuthConfig // reused from the repository section
}

// PublishResult reports what happened on the publishing branch.
type PublishResult struct {
	Commit  string // new commit on the publishing branch, empty when skipped
	Pushed  bool
	Skipped bool // output identical to what the branch already holds
}

// Publisher mutates the publishing branch: switch, delete stale output,
// copy fresh output, commit, push. Only the publishing branch is touched.
type Publisher struct {
	client *Client
}

// NewPublisher creates a Publisher sharing the client's retry policy.
func NewPublisher(client *Client) *Publisher { return &Publisher{client: client} }

// Publish performs the full publishing sequence.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	repository, err := git.PlainOpen(req.CheckoutPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkout: %w", err)
	}
	worktree, err := repository.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	// Stage the generated output outside the checkout first: switching
	// branches mutates the working tree underneath the output directory.
	staging, err := os.MkdirTemp("", "docpub-publish-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()
	if err := copyDir(req.OutputPath, staging); err != nil {
		return nil, fmt.Errorf("failed to stage generator output: %w", err)
	}
	// Drop the untracked output dir from the worktree so it is not swept
	// up by the add-all on the publishing branch.
	if err := os.RemoveAll(req.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to remove output from worktree: %w", err)
	}

	if err := p.checkoutPublishBranch(repository, worktree, req.Publish); err != nil {
		return nil, err
	}

	// Delete stale output, then copy in the fresh build.
	target := filepath.Join(req.CheckoutPath, req.Publish.TargetDir)
	if err := os.RemoveAll(target); err != nil {
		return nil, fmt.Errorf("failed to remove stale output: %w", err)
	}
	if err := copyDir(staging, target); err != nil {
		return nil, fmt.Errorf("failed to copy fresh output: %w", err)
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}
	if status.IsClean() {
		slog.Info("Publishing branch already up to date", logfields.Branch(req.Publish.Branch))
		return &PublishResult{Skipped: true}, nil
	}

	message := fmt.Sprintf(req.Publish.MessageTemplate, ShortHash(req.SourceCommit))
	commit, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  req.Publish.AuthorName,
			Email: req.Publish.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	slog.Info("Committed documentation build",
		logfields.Branch(req.Publish.Branch),
		logfields.Commit(ShortHash(commit.String())),
		slog.String("message", message))

	if err := p.push(ctx, repository, req); err != nil {
		return nil, err
	}
	return &PublishResult{Commit: commit.String(), Pushed: true}, nil
}

// checkoutPublishBranch switches the worktree to the publishing branch,
// creating it from the remote-tracking ref when present. A repository that
// has never published starts the branch from the current HEAD.
func (p *Publisher) checkoutPublishBranch(repository *git.Repository, worktree *git.Worktree, pub config.PublishConfig) error {
	localRef := plumbing.NewBranchReferenceName(pub.Branch)
	opts := &git.CheckoutOptions{Branch: localRef, Force: true}

	if _, err := repository.Reference(localRef, true); err != nil {
		opts.Create = true
		remoteRef := plumbing.NewRemoteReferenceName(pub.Remote, pub.Branch)
		if ref, rerr := repository.Reference(remoteRef, true); rerr == nil {
			opts.Hash = ref.Hash()
		} else {
			slog.Info("Publishing branch missing on remote, starting from HEAD", logfields.Branch(pub.Branch))
		}
	}
	if err := worktree.Checkout(opts); err != nil {
		return fmt.Errorf("failed to checkout publishing branch %s: %w", pub.Branch, err)
	}
	return nil
}

// push sends the publishing branch to the remote, retrying transient failures.
func (p *Publisher) push(ctx context.Context, repository *git.Repository, req PublishRequest) error {
	auth, err := CreateAuth(req.Auth)
	if err != nil {
		return fmt.Errorf("failed to setup authentication: %w", err)
	}
	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", req.Publish.Branch, req.Publish.Branch))

	return p.client.withRetry(ctx, "push", func() error {
		err := repository.PushContext(ctx, &git.PushOptions{
			RemoteName: req.Publish.Remote,
			RefSpecs:   []gitconfig.RefSpec{refSpec},
			Auth:       auth,
		})
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		if err != nil {
			return classifyError("push", req.Publish.Remote, err)
		}
		slog.Info("Pushed publishing branch", logfields.Branch(req.Publish.Branch), slog.String("remote", req.Publish.Remote))
		return nil
	})
}

// copyDir recursively copies a directory tree, preserving file modes.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = dstFile.Close()
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, srcInfo.Mode())
}
