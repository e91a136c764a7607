// Package agent runs workflow stages on external CLI agents (codex, claude,
// gemini-cli, opencode or an arbitrary command) through ainvoke.
package agent

import (
	"errors"
	"fmt"

	"github.com/metalagman/devflow/internal/config"
)

type agentSpec struct {
	binary            string
	defaultSubcommand string
	extraFlags        []string
}

var agentSpecs = map[string]agentSpec{
	config.AgentTypeCodex: {
		binary:            "codex",
		defaultSubcommand: "exec",
		extraFlags:        []string{"--full-auto", "--skip-git-repo-check"},
	},
	config.AgentTypeOpenCode: {
		binary:            "opencode",
		defaultSubcommand: "run",
	},
	config.AgentTypeGeminiCLI: {
		binary:     "gemini",
		extraFlags: []string{"--output-format", "text", "--approval-mode", "yolo"},
	},
	config.AgentTypeClaude: {
		binary:     "claude",
		extraFlags: []string{"--output-format", "text", "--print", "--dangerously-skip-permissions"},
	},
}

// ResolveCmd returns the command line for an external agent definition.
func ResolveCmd(cfg config.AgentConfig) ([]string, error) {
	if cfg.Type == config.AgentTypeExec {
		if len(cfg.Cmd) == 0 {
			return nil, errors.New("exec agent requires cmd")
		}
		return append([]string(nil), cfg.Cmd...), nil
	}
	spec, ok := agentSpecs[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("agent type %q does not run as an external command", cfg.Type)
	}
	if len(cfg.Cmd) > 0 {
		return append([]string(nil), cfg.Cmd...), nil
	}

	out := []string{spec.binary}
	if spec.defaultSubcommand != "" {
		out = append(out, spec.defaultSubcommand)
	}
	if cfg.Model != "" {
		out = append(out, "--model", cfg.Model)
	}
	return append(out, spec.extraFlags...), nil
}
