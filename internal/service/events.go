package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// eventPublisher wraps the optional signal bus. Publish failures are logged
// and never fail the caller.
type eventPublisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
	now    func() time.Time
}

func (p eventPublisher) publish(ctx context.Context, channel, eventType, agentID string, payload any) {
	if p.bus == nil {
		return
	}
	evt, err := json.Marshal(domain.AgentEvent{
		Type:      eventType,
		AgentID:   agentID,
		Payload:   payload,
		CreatedAt: p.now().UTC(),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "events: marshal failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.bus.Publish(ctx, channel, evt); err != nil {
		p.logger.WarnContext(ctx, "events: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if channel == domain.ChannelAgentTrades {
		if err := p.bus.StreamAppend(ctx, domain.StreamAgentTradeAudit, evt); err != nil {
			p.logger.WarnContext(ctx, "events: stream append failed",
				slog.String("error", err.Error()),
			)
		}
	}
}
