package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/proficiency"
	"github.com/p-n-ai/pai-arena/internal/session"
)

const dbTimeout = 5 * time.Second

const selectResult = `SELECT session_id, player_id, competency_id, level, accuracy, elapsed_seconds,
	        edge_case_score, timed_out, session_count, questions, edge_case, started_at, finished_at
	 FROM session_results`

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed result store. The schema is
// created by database.Migrate.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, r session.Result) error {
	if err := validateResult(r); err != nil {
		return err
	}

	questions, err := json.Marshal(r.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	var edgeCase []byte
	if r.EdgeCase != nil {
		if edgeCase, err = json.Marshal(r.EdgeCase); err != nil {
			return fmt.Errorf("marshal edge case: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_results (session_id, player_id, competency_id, level, accuracy, elapsed_seconds,
		                              edge_case_score, timed_out, session_count, questions, edge_case, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $13)`,
		r.SessionID,
		r.PlayerID,
		r.CompetencyID,
		int(r.Level),
		r.Metrics.Accuracy,
		r.Metrics.ElapsedSeconds,
		r.Metrics.EdgeCaseScore,
		r.Metrics.TimedOut,
		r.Metrics.SessionCount,
		string(questions),
		nullIfEmpty(edgeCase),
		r.StartedAt,
		r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, sessionID string) (*session.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	r, err := scanResult(s.pool.QueryRow(ctx, selectResult+` WHERE session_id = $1`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, playerID, competencyID string) ([]session.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectResult+` WHERE player_id = $1 AND competency_id = $2 ORDER BY finished_at DESC`,
		playerID, competencyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []session.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountCompleted(ctx context.Context, playerID, competencyID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_results WHERE player_id = $1 AND competency_id = $2`,
		playerID, competencyID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

func scanResult(row pgx.Row) (*session.Result, error) {
	var (
		r         session.Result
		level     int
		questions []byte
		edgeCase  []byte
	)
	if err := row.Scan(
		&r.SessionID,
		&r.PlayerID,
		&r.CompetencyID,
		&level,
		&r.Metrics.Accuracy,
		&r.Metrics.ElapsedSeconds,
		&r.Metrics.EdgeCaseScore,
		&r.Metrics.TimedOut,
		&r.Metrics.SessionCount,
		&questions,
		&edgeCase,
		&r.StartedAt,
		&r.FinishedAt,
	); err != nil {
		return nil, err
	}

	r.Level = proficiency.Level(level)
	r.Questions = []answer.QuestionResult{}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &r.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	if len(edgeCase) > 0 {
		r.EdgeCase = &session.EdgeCaseEvent{}
		if err := json.Unmarshal(edgeCase, r.EdgeCase); err != nil {
			return nil, fmt.Errorf("decode edge case: %w", err)
		}
	}
	return &r, nil
}

func nullIfEmpty(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}
