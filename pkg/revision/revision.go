// Package revision reads the checked-out revision of a git working tree.
package revision

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Source names a Resolver implementation
const (
	SourceGit   = "git"
	SourceGoGit = "go-git"
)

// Resolver returns the revision hash currently checked out in dir
type Resolver interface {
	Head(ctx context.Context, dir string) (string, error)
}

// New returns the resolver registered for source
func New(source string) (Resolver, error) {
	switch source {
	case "", SourceGit:
		return GitCLI{}, nil
	case SourceGoGit:
		return GoGit{}, nil
	default:
		return nil, fmt.Errorf("unknown revision source %q (expected %q or %q)", source, SourceGit, SourceGoGit)
	}
}

// GitCLI asks the git binary for the HEAD revision
type GitCLI struct {
	// Binary defaults to "git" looked up on PATH
	Binary string
}

// Head runs `git rev-parse HEAD` inside dir
func (g GitCLI) Head(ctx context.Context, dir string) (string, error) {
	binary := g.Binary
	if binary == "" {
		binary = "git"
	}

	cmd := exec.CommandContext(ctx, binary, "rev-parse", "HEAD")
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("failed to read revision in %s: %w\n%s", dir, err, msg)
		}
		return "", fmt.Errorf("failed to read revision in %s: %w", dir, err)
	}

	rev := strings.TrimSpace(stdout.String())
	if rev == "" {
		return "", fmt.Errorf("git rev-parse HEAD returned no revision in %s", dir)
	}
	return rev, nil
}

// GoGit reads HEAD with go-git, for hosts without a git binary
type GoGit struct{}

// Head opens the repository containing dir and resolves HEAD
func (GoGit) Head(ctx context.Context, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
		// linked worktrees keep their refs in the main repository
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", dir, err)
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD in %s: %w", dir, err)
	}
	return ref.Hash().String(), nil
}
