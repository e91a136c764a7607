package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/devflow/internal/db"
	"github.com/metalagman/devflow/internal/run"
	"github.com/metalagman/devflow/internal/shell"
	"github.com/metalagman/devflow/internal/tools"
	"github.com/metalagman/devflow/internal/workspace"
)

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return dir, nil
}

func openStore(repoRoot string) (*db.Store, func(), error) {
	database, err := db.Open(filepath.Join(repoRoot, run.DirName, "devflow.db"))
	if err != nil {
		return nil, func() {}, err
	}
	return db.NewStore(database), func() { _ = database.Close() }, nil
}

func newToolEnv(repoRoot string) (*tools.Env, error) {
	root, err := workspace.New(repoRoot)
	if err != nil {
		return nil, err
	}
	timeout := shell.DefaultTimeout
	if cfg, _, err := loadConfig(repoRoot); err == nil && cfg.Shell.Timeout > 0 {
		timeout = cfg.Shell.Timeout
	}
	return &tools.Env{Root: root, Shell: shell.NewRunner(root.Dir(), timeout)}, nil
}
