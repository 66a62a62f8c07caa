// Package notify fans agent events out to chat channels. Events can be
// filtered by type so operators only hear about what they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// Event types understood by the notifier filter.
const (
	EventTradeOpened = "trade_opened"
	EventDrawdown    = "drawdown"
	EventCycleFailed = "cycle_failed"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every sender. A nil *Notifier is valid and sends
// nothing.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is registered.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends title and message if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "notifier: event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// TradeOpened announces a new simulated position.
func (n *Notifier) TradeOpened(ctx context.Context, agentName string, t domain.AgentTrade) error {
	title := fmt.Sprintf("%s opened %s", agentName, t.Side)
	msg := fmt.Sprintf("%s\nsize $%.2f at %.1f%% (confidence %.0f%%, %s)",
		t.Question, t.SizeUSD, t.EntryProbability*100, t.Confidence*100, t.DecisionSource)
	return n.Notify(ctx, EventTradeOpened, title, msg)
}

// Drawdown warns that an agent's drawdown crossed threshold.
func (n *Notifier) Drawdown(ctx context.Context, p domain.AgentPortfolio, threshold float64) error {
	title := fmt.Sprintf("%s drawdown %.1f%%", p.AgentID, p.MaxDrawdownPct*100)
	msg := fmt.Sprintf("equity $%.2f, peak $%.2f, alert threshold %.1f%%",
		p.CurrentCapitalUSD, p.MaxEquityUSD, threshold*100)
	return n.Notify(ctx, EventDrawdown, title, msg)
}

// CycleFailed reports an agent cycle that produced nothing because market
// data was unavailable.
func (n *Notifier) CycleFailed(ctx context.Context, agentID string, err error) error {
	return n.Notify(ctx, EventCycleFailed, agentID+" cycle failed", err.Error())
}

// dispatch tries every sender; one failure does not stop the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notifier: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notifier: sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
