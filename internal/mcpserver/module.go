package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

// Module serves the MCP server on the supplied transport for the lifetime
// of the fx application and shuts the application down when the session
// ends. It expects *tools.Env, mcp.Transport and a version string.
var Module = fx.Module("mcpserver",
	fx.Provide(fx.Annotate(New, fx.ParamTags(``, `name:"version"`))),
	fx.Invoke(serve),
)

func serve(lc fx.Lifecycle, sd fx.Shutdowner, s *Server, t mcp.Transport) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				err := s.Run(ctx, t)
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("mcp server stopped")
					_ = sd.Shutdown(fx.ExitCode(1))
					return
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
