package push

import (
	"context"
	"log/slog"
)

// Gateway is the boundary to the external push transport. The engine's
// obligation ends at handing over opaque device tokens, a title, and a
// body; failed-token bookkeeping lives on the gateway's side.
type Gateway interface {
	Send(ctx context.Context, tokens []string, title, body string) error
}

// LogGateway records hand-offs instead of delivering. Default wiring for
// development and tests.
type LogGateway struct {
	Logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{Logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, tokens []string, title, body string) error {
	if len(tokens) == 0 {
		return nil
	}
	g.Logger.Info("push hand-off", "tokens", len(tokens), "title", title)
	return nil
}
