// Package gitinfo reads per-file commit history from the repository that
// contains the notes directory.
package gitinfo

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// ErrNoHistory means no commit touches the file (new or untracked).
var ErrNoHistory = errors.New("file has no commit history")

// Repo wraps an opened repository for per-file history lookups.
type Repo struct {
	repo *git.Repository
	root string // worktree root, absolute
}

// Open detects the repository containing dir, walking up to find .git the
// way the git CLI does.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// FileHistory walks the commit log for one file and returns the newest
// commit hash plus the newest and oldest author times.
func (r *Repo) FileHistory(path string) (*page.GitData, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return nil, fmt.Errorf("path %s is outside the repository: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	iter, err := r.repo.Log(&git.LogOptions{
		FileName: &rel,
		Order:    git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", rel, err)
	}
	defer iter.Close()

	var newest, oldest *object.Commit
	if err := iter.ForEach(func(c *object.Commit) error {
		if newest == nil {
			newest = c
		}
		oldest = c
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk log for %s: %w", rel, err)
	}
	if newest == nil {
		return nil, ErrNoHistory
	}

	return &page.GitData{
		LastCommit:   newest.Hash.String(),
		LastModified: newest.Author.When,
		Created:      oldest.Author.When,
	}, nil
}
