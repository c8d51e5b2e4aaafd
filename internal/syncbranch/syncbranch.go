// Package syncbranch performs the one-time git plumbing behind
// config.sync_branch (spec §4.1/§6.4): an orphan branch holding only
// .tasque/, checked out as a sparse worktree, with the event-log merge
// driver registered in local git config.
package syncbranch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// branchNamePattern follows git-check-ref-format: alphanumeric bookends,
// dots/dashes/underscores/slashes in the middle. It does not reject "..";
// ValidateBranchName checks that separately.
var branchNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*[a-zA-Z0-9]$`)

// ValidateBranchName checks name against git's ref-name rules plus the
// tasque-specific rejection of main/master, which git worktrees cannot
// check out alongside the primary working copy.
func ValidateBranchName(name string) error {
	if name == "" {
		return tasqerr.New(tasqerr.CodeValidation, "sync branch name cannot be empty")
	}
	if len(name) > 255 {
		return tasqerr.New(tasqerr.CodeValidation, "branch name too long (max 255 characters)")
	}
	if !branchNamePattern.MatchString(name) {
		return tasqerr.New(tasqerr.CodeValidation, "invalid branch name %q: must start/end alphanumeric, only .-_/ in between", name)
	}
	if strings.Contains(name, "..") {
		return tasqerr.New(tasqerr.CodeValidation, "invalid branch name %q: cannot contain '..'", name)
	}
	if name == "HEAD" || name == "main" || name == "master" {
		return tasqerr.New(tasqerr.CodeValidation, "cannot use %q as sync branch: reserved or conflicts with the primary worktree checkout", name)
	}
	return nil
}

const mergeDriverBinary = "tasque-merge-driver"

// Setup performs the full one-time sync-branch bootstrap for l.Root
// (spec §6.4): validate the name, create an orphan branch containing
// only .tasque/ and .gitattributes, attach it as a sparse worktree, and
// register the merge driver in local git config. It is safe to call
// again for an existing branch — each step is idempotent.
func Setup(l paths.Layout, branchName string) error {
	if err := ValidateBranchName(branchName); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := registerMergeDriver(ctx, l.Root); err != nil {
		return err
	}
	if err := writeGitattributes(l.Root); err != nil {
		return err
	}
	return ensureOrphanWorktree(ctx, l, branchName)
}

// registerMergeDriver writes the merge.tasque-events.* local git config
// entries .gitattributes references (spec §4.7).
func registerMergeDriver(ctx context.Context, repoRoot string) error {
	driverCmd := fmt.Sprintf("%s %%O %%A %%B", mergeDriverBinary)
	if err := runGit(ctx, repoRoot, "config", "--local", "merge.tasque-events.name", "tasque event log merge driver"); err != nil {
		return err
	}
	return runGit(ctx, repoRoot, "config", "--local", "merge.tasque-events.driver", driverCmd)
}

const gitattributesContent = ".tasque/events.jsonl merge=tasque-events\n"

func writeGitattributes(repoRoot string) error {
	path := filepath.Join(repoRoot, ".gitattributes")
	existing, err := os.ReadFile(path)
	if err == nil && strings.Contains(string(existing), "merge=tasque-events") {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "read %s", path)
	}
	combined := string(existing)
	if combined != "" && !strings.HasSuffix(combined, "\n") {
		combined += "\n"
	}
	combined += gitattributesContent
	if err := paths.AtomicWrite(path, []byte(combined)); err != nil {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "write %s", path)
	}
	return nil
}

// ensureOrphanWorktree creates branchName as an orphan branch (if it
// doesn't already exist) attached as a sparse worktree scoped to
// .tasque/, then commits the current .tasque/ contents to it.
func ensureOrphanWorktree(ctx context.Context, l paths.Layout, branchName string) error {
	if branchExists(ctx, l.Root, branchName) {
		return nil
	}

	worktreeDir, err := os.MkdirTemp(filepath.Dir(l.Root), ".tasque-sync-*")
	if err != nil {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "create sync worktree staging dir")
	}
	defer os.RemoveAll(worktreeDir)
	// git worktree add refuses to adopt an existing directory; stage
	// under a path git itself creates.
	if err := os.RemoveAll(worktreeDir); err != nil {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "clear sync worktree staging dir")
	}

	if err := runGit(ctx, l.Root, "worktree", "add", "--orphan", "-b", branchName, worktreeDir); err != nil {
		return err
	}
	defer runGit(ctx, l.Root, "worktree", "remove", "--force", worktreeDir)

	if err := runGit(ctx, worktreeDir, "sparse-checkout", "init", "--cone"); err != nil {
		return err
	}
	if err := runGit(ctx, worktreeDir, "sparse-checkout", "set", ".tasque"); err != nil {
		return err
	}

	if err := copyTree(l.Dir, filepath.Join(worktreeDir, ".tasque")); err != nil {
		return err
	}
	if err := paths.AtomicWrite(filepath.Join(worktreeDir, ".gitattributes"), []byte(gitattributesContent)); err != nil {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "write %s/.gitattributes", worktreeDir)
	}

	if err := runGit(ctx, worktreeDir, "add", "-A"); err != nil {
		return err
	}
	return runGit(ctx, worktreeDir, "commit", "-m", "tasque: initialize sync branch")
}

func branchExists(ctx context.Context, repoRoot, branchName string) bool {
	ref := "refs/heads/" + branchName
	cmd := exec.CommandContext(ctx, "git", "-C", repoRoot, "show-ref", "--verify", "--quiet", ref) // #nosec G204 - branchName validated by ValidateBranchName
	return cmd.Run() == nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...) // #nosec G204 - args are fixed subcommands plus validated inputs
	out, err := cmd.CombinedOutput()
	if err != nil {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
