package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// PortfolioStore implements domain.PortfolioStore. Open positions are kept
// as a JSONB map keyed by market id.
type PortfolioStore struct {
	pool *pgxpool.Pool
}

// NewPortfolioStore creates a PortfolioStore backed by pool.
func NewPortfolioStore(pool *pgxpool.Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

const portfolioSelectCols = `agent_id, starting_capital_usd, current_capital_usd,
	realized_pnl_usd, unrealized_pnl_usd, max_equity_usd, max_drawdown_pct,
	open_positions, updated_at`

func scanPortfolio(row pgx.Row) (domain.AgentPortfolio, error) {
	var (
		p         domain.AgentPortfolio
		positions []byte
	)
	if err := row.Scan(
		&p.AgentID, &p.StartingCapitalUSD, &p.CurrentCapitalUSD,
		&p.RealizedPnlUSD, &p.UnrealizedPnlUSD, &p.MaxEquityUSD, &p.MaxDrawdownPct,
		&positions, &p.UpdatedAt,
	); err != nil {
		return domain.AgentPortfolio{}, err
	}
	p.OpenPositions = make(map[string]domain.AgentPosition)
	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &p.OpenPositions); err != nil {
			return domain.AgentPortfolio{}, fmt.Errorf("unmarshal positions: %w", err)
		}
	}
	return p, nil
}

// Get returns an agent's portfolio or domain.ErrNotFound.
func (s *PortfolioStore) Get(ctx context.Context, agentID string) (domain.AgentPortfolio, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+portfolioSelectCols+` FROM agent_portfolios WHERE agent_id = $1`, agentID)
	p, err := scanPortfolio(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AgentPortfolio{}, fmt.Errorf("postgres: portfolio %s: %w", agentID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AgentPortfolio{}, fmt.Errorf("postgres: get portfolio %s: %w", agentID, err)
	}
	return p, nil
}

// Upsert writes the full portfolio row.
func (s *PortfolioStore) Upsert(ctx context.Context, p domain.AgentPortfolio) error {
	positions := p.OpenPositions
	if positions == nil {
		positions = map[string]domain.AgentPosition{}
	}
	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("postgres: marshal positions: %w", err)
	}

	const query = `
		INSERT INTO agent_portfolios (
			agent_id, starting_capital_usd, current_capital_usd,
			realized_pnl_usd, unrealized_pnl_usd, max_equity_usd, max_drawdown_pct,
			open_positions, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (agent_id) DO UPDATE SET
			starting_capital_usd = EXCLUDED.starting_capital_usd,
			current_capital_usd  = EXCLUDED.current_capital_usd,
			realized_pnl_usd     = EXCLUDED.realized_pnl_usd,
			unrealized_pnl_usd   = EXCLUDED.unrealized_pnl_usd,
			max_equity_usd       = EXCLUDED.max_equity_usd,
			max_drawdown_pct     = EXCLUDED.max_drawdown_pct,
			open_positions       = EXCLUDED.open_positions,
			updated_at           = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, query,
		p.AgentID, p.StartingCapitalUSD, p.CurrentCapitalUSD,
		p.RealizedPnlUSD, p.UnrealizedPnlUSD, p.MaxEquityUSD, p.MaxDrawdownPct,
		data, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert portfolio %s: %w", p.AgentID, err)
	}
	return nil
}

// List returns every stored portfolio ordered by agent id.
func (s *PortfolioStore) List(ctx context.Context) ([]domain.AgentPortfolio, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+portfolioSelectCols+` FROM agent_portfolios ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list portfolios: %w", err)
	}
	defer rows.Close()

	var out []domain.AgentPortfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list portfolios rows: %w", err)
	}
	return out, nil
}

var _ domain.PortfolioStore = (*PortfolioStore)(nil)
