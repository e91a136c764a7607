package roles

import (
	"context"
	"fmt"
	"os"

	execagent "github.com/metalagman/devflow/internal/agent"
	"github.com/metalagman/devflow/internal/config"
	"github.com/metalagman/devflow/internal/tools"
	"github.com/rs/zerolog/log"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

var defaultAPIKeyEnvs = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

// ModelFunc creates the LLM for an in-process agent definition.
type ModelFunc func(ctx context.Context, cfg config.AgentConfig) (model.LLM, error)

// Factory builds ADK agents for roles from resolved agent definitions.
type Factory struct {
	// Agents maps role keys to agent definitions, as returned by
	// config.Config.ResolveAgents.
	Agents      map[string]config.AgentConfig
	Registry    *tools.Registry
	ProjectRoot string
	// StepsDir receives per-step logs of external agents.
	StepsDir string
	NewModel ModelFunc

	models map[modelKey]model.LLM
}

// modelKey identifies a shareable model client.
type modelKey struct {
	model     string
	apiKeyEnv string
}

// Build returns the agent for r.
func (f *Factory) Build(ctx context.Context, r Role) (agent.Agent, error) {
	cfg, ok := f.Agents[r.Key]
	if !ok {
		return nil, fmt.Errorf("no agent configured for role %q", r.Key)
	}
	instruction, err := r.Instruction()
	if err != nil {
		return nil, err
	}

	log.Debug().Str("role", r.Name).Str("type", cfg.Type).Str("model", cfg.Model).Msg("building role agent")

	if !cfg.IsLLM() {
		return execagent.NewStage(execagent.StageConfig{
			Name:         r.Name,
			Description:  r.Description,
			Instruction:  instruction,
			Agent:        cfg,
			ProjectRoot:  f.ProjectRoot,
			StepsDir:     f.StepsDir,
			StateKeys:    StateKeys,
			IterationKey: KeyRefinementIteration,
			OutputKey:    r.OutputKey,
			Review:       r.Review,
		})
	}

	llm, err := f.model(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("model for %s: %w", r.Name, err)
	}
	roleTools, err := f.Registry.Build(r.Tools...)
	if err != nil {
		return nil, fmt.Errorf("tools for %s: %w", r.Name, err)
	}
	return llmagent.New(llmagent.Config{
		Name:        r.Name,
		Description: r.Description,
		Model:       llm,
		Instruction: instruction,
		Tools:       roleTools,
		OutputKey:   r.OutputKey,
	})
}

func (f *Factory) model(ctx context.Context, cfg config.AgentConfig) (model.LLM, error) {
	key := modelKey{model: cfg.Model, apiKeyEnv: cfg.APIKeyEnv}
	if llm, ok := f.models[key]; ok {
		return llm, nil
	}
	newModel := f.NewModel
	if newModel == nil {
		newModel = NewGeminiModel
	}
	llm, err := newModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if f.models == nil {
		f.models = map[modelKey]model.LLM{}
	}
	f.models[key] = llm
	return llm, nil
}

// NewGeminiModel creates a Gemini API model. The key comes from
// cfg.APIKeyEnv, then GOOGLE_API_KEY, then GEMINI_API_KEY.
func NewGeminiModel(ctx context.Context, cfg config.AgentConfig) (model.LLM, error) {
	envs := defaultAPIKeyEnvs
	if cfg.APIKeyEnv != "" {
		envs = []string{cfg.APIKeyEnv}
	}
	var apiKey string
	for _, name := range envs {
		if v := os.Getenv(name); v != "" {
			apiKey = v
			break
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set (checked %v)", envs)
	}
	return gemini.NewModel(ctx, cfg.Model, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}
