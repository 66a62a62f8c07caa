package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const uniqueViolation = "23505"

// TradeStore implements domain.TradeStore on the agent_trades table.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, agent_id, market_id, question, category, side,
	confidence, size_usd, entry_probability, status, pnl_usd, reasoning,
	decision_source, opened_at, closed_at`

func scanTrade(row pgx.Row) (domain.AgentTrade, error) {
	var (
		t         domain.AgentTrade
		reasoning []byte
	)
	if err := row.Scan(
		&t.ID, &t.AgentID, &t.MarketID, &t.Question, &t.Category, &t.Side,
		&t.Confidence, &t.SizeUSD, &t.EntryProbability, &t.Status, &t.PnlUSD,
		&reasoning, &t.DecisionSource, &t.OpenedAt, &t.ClosedAt,
	); err != nil {
		return domain.AgentTrade{}, err
	}
	if len(reasoning) > 0 {
		if err := json.Unmarshal(reasoning, &t.Reasoning); err != nil {
			return domain.AgentTrade{}, fmt.Errorf("unmarshal reasoning: %w", err)
		}
	}
	return t, nil
}

func collectTrades(rows pgx.Rows) ([]domain.AgentTrade, error) {
	defer rows.Close()
	var out []domain.AgentTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Insert stores a newly opened trade. A duplicate id returns
// domain.ErrAlreadyExists.
func (s *TradeStore) Insert(ctx context.Context, t domain.AgentTrade) error {
	reasoning, err := json.Marshal(t.Reasoning)
	if err != nil {
		return fmt.Errorf("postgres: marshal reasoning: %w", err)
	}
	const query = `
		INSERT INTO agent_trades (
			id, agent_id, market_id, question, category, side,
			confidence, size_usd, entry_probability, status, pnl_usd,
			reasoning, decision_source, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.AgentID, t.MarketID, t.Question, t.Category, string(t.Side),
		t.Confidence, t.SizeUSD, t.EntryProbability, string(t.Status), t.PnlUSD,
		reasoning, t.DecisionSource, t.OpenedAt, t.ClosedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("postgres: insert trade %s: %w", t.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// UpdateSettlement closes a trade with its realized pnl.
func (s *TradeStore) UpdateSettlement(ctx context.Context, id string, pnl float64, closedAt time.Time) error {
	const query = `
		UPDATE agent_trades
		SET status = 'CLOSED', pnl_usd = $2, closed_at = $3
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, pnl, closedAt)
	if err != nil {
		return fmt.Errorf("postgres: settle trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: settle trade %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one trade or domain.ErrNotFound.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.AgentTrade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeSelectCols+` FROM agent_trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AgentTrade{}, fmt.Errorf("postgres: trade %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AgentTrade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByAgent returns an agent's trades, newest first.
func (s *TradeStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.AgentTrade, error) {
	query, args := listClause(
		`SELECT `+tradeSelectCols+` FROM agent_trades WHERE agent_id = $1`,
		[]any{agentID}, "opened_at", opts,
	)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", agentID, err)
	}
	trades, err := collectTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades for %s: %w", agentID, err)
	}
	return trades, nil
}

// ListOpen returns every OPEN trade across agents.
func (s *TradeStore) ListOpen(ctx context.Context) ([]domain.AgentTrade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM agent_trades WHERE status = 'OPEN' ORDER BY opened_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open trades: %w", err)
	}
	trades, err := collectTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open trades: %w", err)
	}
	return trades, nil
}

// ListAll returns trades across agents filtered by opened_at.
func (s *TradeStore) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.AgentTrade, error) {
	query, args := listClause(`SELECT `+tradeSelectCols+` FROM agent_trades WHERE 1=1`, nil, "opened_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	trades, err := collectTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListClosedBefore returns settled trades closed before the cutoff, for
// archival.
func (s *TradeStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.AgentTrade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM agent_trades
		 WHERE status = 'CLOSED' AND closed_at < $1 ORDER BY closed_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed trades: %w", err)
	}
	trades, err := collectTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed trades: %w", err)
	}
	return trades, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
