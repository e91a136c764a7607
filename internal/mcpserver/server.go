// Package mcpserver exposes the project tools over the Model Context
// Protocol so other agents can share devflow's sandbox.
package mcpserver

import (
	"context"

	"github.com/metalagman/devflow/internal/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const serverName = "devflow"

// Server is an MCP server bound to one project.
type Server struct {
	env *tools.Env
	mcp *mcp.Server
}

// New registers the file, shell, git and onboarding tools. The review tool
// needs workflow session state and is not exposed.
func New(env *tools.Env, version string) *Server {
	s := &Server{
		env: env,
		mcp: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves on t until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	log.Info().Str("root", s.env.Root.Dir()).Msg("mcp server started")
	return s.mcp.Run(ctx, t)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools.NameReadFile,
		Description: "Reads a file under the project root.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, args tools.PathArgs) (*mcp.CallToolResult, tools.TextResult, error) {
		return nil, s.env.ReadFile(args), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools.NameWriteFile,
		Description: "Writes a file under the project root, creating parent directories.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, args tools.WriteFileArgs) (*mcp.CallToolResult, tools.TextResult, error) {
		return nil, s.env.WriteFile(args), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools.NameListDirectory,
		Description: "Lists every file and directory below a path, relative to the project root.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, args tools.PathArgs) (*mcp.CallToolResult, tools.ListResult, error) {
		return nil, s.env.ListDirectory(args), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools.NameRunShellCommand,
		Description: "Runs a shell command from the project root and returns stdout, or the exit code with both streams on failure.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args tools.CommandArgs) (*mcp.CallToolResult, tools.TextResult, error) {
		return nil, s.env.RunShellCommand(ctx, args), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools.NameListGitFiles,
		Description: "Lists files tracked by git.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ tools.NoArgs) (*mcp.CallToolResult, tools.ListResult, error) {
		return nil, s.env.ListGitFiles(), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools.NameOnboardProject,
		Description: "Summarizes the project: branch, remote, key docs and tracked files.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ tools.NoArgs) (*mcp.CallToolResult, tools.OnboardResult, error) {
		return nil, s.env.OnboardProject(ctx), nil
	})
}
