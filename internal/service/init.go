package service

import (
	"github.com/BumpyClock/tasque/internal/config"
	"github.com/BumpyClock/tasque/internal/eventlog"
	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/syncbranch"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// Init writes the default config if absent, ensures the event log exists,
// creates the snapshots/specs directories, and writes .gitignore (spec
// §4.6 "init"). If syncBranch is non-empty, it additionally performs the
// sync-branch setup of spec §6.4.
func (s *Service) Init(syncBranchName string) error {
	if err := s.Layout.EnsureDirs(); err != nil {
		return err
	}
	if err := config.EnsureDefault(s.Layout); err != nil {
		return err
	}
	if err := eventlog.New(s.Layout).EnsureExists(); err != nil {
		return err
	}
	if err := writeGitignore(s.Layout); err != nil {
		return err
	}
	if syncBranchName == "" {
		return nil
	}

	cfg, err := config.Load(s.Layout)
	if err != nil {
		return err
	}
	cfg.SyncBranch = syncBranchName
	if err := config.Save(s.Layout, cfg); err != nil {
		return err
	}
	return syncbranch.Setup(s.Layout, syncBranchName)
}

func writeGitignore(l paths.Layout) error {
	if err := paths.AtomicWrite(l.Gitignore, []byte(paths.DefaultGitignore)); err != nil {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "write %s", l.Gitignore)
	}
	return nil
}
