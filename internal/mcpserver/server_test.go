package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/devflow/internal/shell"
	"github.com/metalagman/devflow/internal/tools"
	"github.com/metalagman/devflow/internal/workspace"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func newEnv(t *testing.T) *tools.Env {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# demo\n"), 0o644))
	root, err := workspace.New(dir)
	require.NoError(t, err)
	return &tools.Env{Root: root, Shell: shell.NewRunner(root.Dir(), time.Minute)}
}

func connect(t *testing.T, ctx context.Context, t2 mcp.Transport) *mcp.ClientSession {
	t.Helper()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	return session
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestServerTools(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(newEnv(t), "test")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	go func() { _ = s.Run(ctx, serverTransport) }()
	session := connect(t, ctx, clientTransport)
	defer func() { _ = session.Close() }()

	listed, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		tools.NameReadFile,
		tools.NameWriteFile,
		tools.NameListDirectory,
		tools.NameRunShellCommand,
		tools.NameListGitFiles,
		tools.NameOnboardProject,
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.NameWriteFile,
		Arguments: map[string]any{"path": "docs/notes.md", "content": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "File docs/notes.md written successfully.", decode[tools.TextResult](t, res).Result)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.NameReadFile,
		Arguments: map[string]any{"path": "docs/notes.md"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", decode[tools.TextResult](t, res).Result)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.NameReadFile,
		Arguments: map[string]any{"path": "../outside.txt"},
	})
	require.NoError(t, err)
	assert.Contains(t, decode[tools.TextResult](t, res).Result, "Error reading file ../outside.txt")

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.NameListDirectory,
		Arguments: map[string]any{"path": "."},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "docs", "docs/notes.md"}, decode[tools.ListResult](t, res).Result)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.NameRunShellCommand,
		Arguments: map[string]any{"command": "echo hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", decode[tools.TextResult](t, res).Result)
}

func TestModuleServesUntilClientCloses(t *testing.T) {
	t.Parallel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	env := newEnv(t)
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(env, fx.Annotated{Name: "version", Target: "test"}),
		fx.Provide(func() mcp.Transport { return serverTransport }),
		Module,
	)
	app.RequireStart()

	ctx := context.Background()
	session := connect(t, ctx, clientTransport)
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.NameReadFile,
		Arguments: map[string]any{"path": "README.md"},
	})
	require.NoError(t, err)
	assert.Equal(t, "# demo\n", decode[tools.TextResult](t, res).Result)

	require.NoError(t, session.Close())
	select {
	case <-app.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down after the session closed")
	}
	app.RequireStop()
}
