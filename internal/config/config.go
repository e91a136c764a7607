// Package config provides configuration loading and management for devflow.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Agent backend types.
const (
	AgentTypeGemini    = "gemini"
	AgentTypeGeminiCLI = "gemini_cli"
	AgentTypeCodex     = "codex"
	AgentTypeClaude    = "claude"
	AgentTypeOpenCode  = "opencode"
	AgentTypeExec      = "exec"
)

// Role keys used in profiles and in the resolved agent map.
const (
	RoleSpecWriter  = "spec_writer"
	RoleImplementer = "implementer"
	RoleReviewer    = "reviewer"
	RoleCommitter   = "committer"
)

// DefaultProfile is used when neither the flag nor the file selects one.
const DefaultProfile = "default"

// Config is the root configuration.
type Config struct {
	Profile   string                   `json:"profile,omitempty" mapstructure:"profile"   yaml:"profile"`
	Agents    map[string]AgentConfig   `json:"agents"            mapstructure:"agents"    yaml:"agents"`
	Profiles  map[string]ProfileConfig `json:"profiles"          mapstructure:"profiles"  yaml:"profiles"`
	Budgets   Budgets                  `json:"budgets"           mapstructure:"budgets"   yaml:"budgets"`
	Shell     ShellConfig              `json:"shell"             mapstructure:"shell"     yaml:"shell"`
	Retention RetentionPolicy          `json:"retention"         mapstructure:"retention" yaml:"retention"`
}

// AgentConfig describes how to run an agent.
type AgentConfig struct {
	Type      string   `json:"type"                  mapstructure:"type"        yaml:"type"`
	Cmd       []string `json:"cmd,omitempty"         mapstructure:"cmd"         yaml:"cmd,omitempty"`
	Model     string   `json:"model,omitempty"       mapstructure:"model"       yaml:"model,omitempty"`
	APIKeyEnv string   `json:"api_key_env,omitempty" mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	UseTTY    *bool    `json:"use_tty,omitempty"     mapstructure:"use_tty"     yaml:"use_tty,omitempty"`
}

// IsLLM reports whether the agent runs in-process on the Gemini API.
func (a AgentConfig) IsLLM() bool {
	return a.Type == AgentTypeGemini
}

// ProfileConfig binds workflow roles to agent definitions.
type ProfileConfig struct {
	Roles RoleRefs `json:"roles" mapstructure:"roles" yaml:"roles"`
}

// RoleRefs names the agent used by each role.
type RoleRefs struct {
	SpecWriter  string `json:"spec_writer" mapstructure:"spec_writer" yaml:"spec_writer"`
	Implementer string `json:"implementer" mapstructure:"implementer" yaml:"implementer"`
	Reviewer    string `json:"reviewer"    mapstructure:"reviewer"    yaml:"reviewer"`
	Committer   string `json:"committer"   mapstructure:"committer"   yaml:"committer"`
}

func (r RoleRefs) byRole() map[string]string {
	return map[string]string{
		RoleSpecWriter:  r.SpecWriter,
		RoleImplementer: r.Implementer,
		RoleReviewer:    r.Reviewer,
		RoleCommitter:   r.Committer,
	}
}

// Budgets defines run limits.
type Budgets struct {
	MaxIterations int `json:"max_iterations" mapstructure:"max_iterations" yaml:"max_iterations"`
}

// ShellConfig controls run_shell_command.
type ShellConfig struct {
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// RetentionPolicy defines how many old runs to keep.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last" yaml:"keep_last,omitempty"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days" yaml:"keep_days,omitempty"`
}

// Default returns the configuration written by devflow init.
func Default() Config {
	return Config{
		Profile: DefaultProfile,
		Agents: map[string]AgentConfig{
			"gemini_flash": {Type: AgentTypeGemini, Model: "gemini-2.0-flash"},
			"gemini_pro":   {Type: AgentTypeGemini, Model: "gemini-2.5-pro"},
			"codex_exec":   {Type: AgentTypeCodex, Model: "gpt-5.2-codex"},
		},
		Profiles: map[string]ProfileConfig{
			DefaultProfile: {Roles: RoleRefs{
				SpecWriter:  "gemini_flash",
				Implementer: "gemini_flash",
				Reviewer:    "gemini_pro",
				Committer:   "gemini_flash",
			}},
			"codex": {Roles: RoleRefs{
				SpecWriter:  "codex_exec",
				Implementer: "codex_exec",
				Reviewer:    "codex_exec",
				Committer:   "codex_exec",
			}},
		},
		Budgets:   Budgets{MaxIterations: 5},
		Shell:     ShellConfig{Timeout: 10 * time.Minute},
		Retention: RetentionPolicy{KeepLast: 50, KeepDays: 30},
	}
}

// ResolveAgents picks a profile and returns the agent definition for every role.
func (c Config) ResolveAgents(profile string) (string, map[string]AgentConfig, error) {
	selected := profile
	if selected == "" {
		selected = c.Profile
	}
	if selected == "" {
		selected = DefaultProfile
	}

	p, ok := c.Profiles[selected]
	if !ok {
		return "", nil, fmt.Errorf("profile %q is not defined", selected)
	}

	out := make(map[string]AgentConfig, 4)
	for role, ref := range p.Roles.byRole() {
		if ref == "" {
			return "", nil, fmt.Errorf("profile %q: role %q has no agent", selected, role)
		}
		ac, ok := c.Agents[ref]
		if !ok {
			return "", nil, fmt.Errorf("profile %q: role %q references undefined agent %q", selected, role, ref)
		}
		if err := ac.Validate(); err != nil {
			return "", nil, fmt.Errorf("agent %q: %w", ref, err)
		}
		out[role] = ac
	}
	return selected, out, nil
}

// Validate checks an agent definition.
func (a AgentConfig) Validate() error {
	switch a.Type {
	case AgentTypeGemini:
		if a.Model == "" {
			return errors.New("gemini agent requires model")
		}
	case AgentTypeExec:
		if len(a.Cmd) == 0 {
			return errors.New("exec agent requires cmd")
		}
	case AgentTypeGeminiCLI, AgentTypeCodex, AgentTypeClaude, AgentTypeOpenCode:
	default:
		return fmt.Errorf("unknown agent type %q", a.Type)
	}
	return nil
}

// Validate checks budgets and limits.
func (c Config) Validate() error {
	if c.Budgets.MaxIterations <= 0 {
		return errors.New("budgets.max_iterations must be > 0")
	}
	if c.Shell.Timeout < 0 {
		return errors.New("shell.timeout must not be negative")
	}
	return nil
}
