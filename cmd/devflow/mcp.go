package main

import (
	"context"
	"fmt"

	"github.com/metalagman/devflow/internal/mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "mcp",
		Short:        "Serve the project tools over MCP on stdio",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := repoRoot()
			if err != nil {
				return err
			}
			env, err := newToolEnv(root)
			if err != nil {
				return err
			}

			app := fx.New(
				fx.NopLogger,
				fx.Supply(env, fx.Annotated{Name: "version", Target: version}),
				fx.Provide(func() mcp.Transport { return &mcp.StdioTransport{} }),
				mcpserver.Module,
			)
			ctx := cmd.Context()
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("start mcp server: %w", err)
			}
			var sig fx.ShutdownSignal
			select {
			case sig = <-app.Wait():
			case <-ctx.Done():
			}
			if err := app.Stop(context.WithoutCancel(ctx)); err != nil {
				return fmt.Errorf("stop mcp server: %w", err)
			}
			if sig.ExitCode != 0 {
				return fmt.Errorf("mcp server exited with code %d", sig.ExitCode)
			}
			return nil
		},
	}
}
