package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// ResearchStore implements domain.ResearchStore on agent_research.
type ResearchStore struct {
	pool *pgxpool.Pool
}

// NewResearchStore creates a ResearchStore backed by pool.
func NewResearchStore(pool *pgxpool.Pool) *ResearchStore {
	return &ResearchStore{pool: pool}
}

const researchSelectCols = `id, agent_id, market_id, question, side, confidence,
	score, reasoning, decision_source, created_at`

// InsertBatch appends notes in one round trip. Re-inserted ids are skipped.
func (s *ResearchStore) InsertBatch(ctx context.Context, notes []domain.ResearchDecision) error {
	if len(notes) == 0 {
		return nil
	}

	const query = `
		INSERT INTO agent_research (
			id, agent_id, market_id, question, side, confidence,
			score, reasoning, decision_source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, n := range notes {
		reasoning, err := json.Marshal(n.Reasoning)
		if err != nil {
			return fmt.Errorf("postgres: marshal research %s: %w", n.ID, err)
		}
		batch.Queue(query,
			n.ID, n.AgentID, n.MarketID, n.Question, string(n.Side), n.Confidence,
			n.Score, reasoning, n.DecisionSource, n.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range notes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert research batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByAgent returns an agent's research history, newest first.
func (s *ResearchStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.ResearchDecision, error) {
	query, args := listClause(
		`SELECT `+researchSelectCols+` FROM agent_research WHERE agent_id = $1`,
		[]any{agentID}, "created_at", opts,
	)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list research for %s: %w", agentID, err)
	}
	return collectResearch(rows)
}

// ListBefore returns notes written before the cutoff, oldest first.
func (s *ResearchStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ResearchDecision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+researchSelectCols+` FROM agent_research WHERE created_at < $1 ORDER BY created_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list research before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectResearch(rows)
}

func collectResearch(rows pgx.Rows) ([]domain.ResearchDecision, error) {
	defer rows.Close()
	var out []domain.ResearchDecision
	for rows.Next() {
		var (
			n         domain.ResearchDecision
			reasoning []byte
		)
		if err := rows.Scan(
			&n.ID, &n.AgentID, &n.MarketID, &n.Question, &n.Side, &n.Confidence,
			&n.Score, &reasoning, &n.DecisionSource, &n.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan research: %w", err)
		}
		if len(reasoning) > 0 {
			if err := json.Unmarshal(reasoning, &n.Reasoning); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal research reasoning: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: research rows: %w", err)
	}
	return out, nil
}

var _ domain.ResearchStore = (*ResearchStore)(nil)
