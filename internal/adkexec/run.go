// Package adkexec runs an ADK agent tree to completion on an in-memory session.
package adkexec

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/adk/agent"
	adkrunner "google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const (
	defaultAppName = "devflow"
	defaultUserID  = "devflow-user"
)

// RunInput defines shared execution parameters for running an ADK agent.
type RunInput struct {
	AppName      string
	UserID       string
	SessionID    string
	Agent        agent.Agent
	InitialState map[string]any
	// Message is sent as the user turn. Empty sends no content.
	Message string
	OnEvent func(*session.Event)
}

// Run executes an ADK agent and returns the final session.
func Run(ctx context.Context, input RunInput) (session.Session, error) {
	if input.Agent == nil {
		return nil, errors.New("agent is required")
	}

	appName := input.AppName
	if appName == "" {
		appName = defaultAppName
	}
	userID := input.UserID
	if userID == "" {
		userID = defaultUserID
	}

	sessionService := session.InMemoryService()
	r, err := adkrunner.New(adkrunner.Config{
		AppName:        appName,
		Agent:          input.Agent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("create ADK runner: %w", err)
	}

	created, err := sessionService.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: input.SessionID,
		State:     input.InitialState,
	})
	if err != nil {
		return nil, fmt.Errorf("create ADK session: %w", err)
	}

	var content *genai.Content
	if input.Message != "" {
		content = genai.NewContentFromText(input.Message, genai.RoleUser)
	}

	for ev, runErr := range r.Run(ctx, userID, created.Session.ID(), content, agent.RunConfig{}) {
		if runErr != nil {
			return nil, runErr
		}
		if input.OnEvent != nil && ev != nil {
			input.OnEvent(ev)
		}
	}

	finalSess, err := sessionService.Get(ctx, &session.GetRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: created.Session.ID(),
	})
	if err != nil {
		return nil, fmt.Errorf("get ADK session: %w", err)
	}

	return finalSess.Session, nil
}
