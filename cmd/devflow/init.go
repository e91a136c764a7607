package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/devflow/internal/config"
	"github.com/metalagman/devflow/internal/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const gitignoreEntry = ".devflow/"

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize devflow in the current project",
		Long:  "Create the .devflow directory, install a default config.yaml and keep .devflow out of git.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := repoRoot()
			if err != nil {
				return err
			}
			if err := initProject(root); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "devflow initialized successfully")
			return nil
		},
	}
}

func initProject(repoRoot string) error {
	devflowDir := filepath.Join(repoRoot, run.DirName)
	log.Info().Str("dir", devflowDir).Msg("creating devflow directory")
	for _, dir := range []string{"runs", "locks"} {
		if err := os.MkdirAll(filepath.Join(devflowDir, dir), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", dir, err)
		}
	}

	configPath := filepath.Join(repoRoot, defaultConfigPath)
	if _, err := os.Stat(configPath); err == nil {
		log.Info().Str("path", configPath).Msg("config already exists, skipping")
	} else {
		log.Info().Str("path", configPath).Msg("installing default config")
		var buf bytes.Buffer
		if err := config.EncodeYAML(&buf, config.Default()); err != nil {
			return err
		}
		if err := os.WriteFile(configPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return ensureGitignore(repoRoot)
}

func ensureGitignore(repoRoot string) error {
	path := filepath.Join(repoRoot, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read .gitignore: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		switch strings.TrimSpace(line) {
		case gitignoreEntry, strings.TrimSuffix(gitignoreEntry, "/"), "/" + gitignoreEntry:
			return nil
		}
	}
	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += gitignoreEntry + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write .gitignore: %w", err)
	}
	return nil
}
