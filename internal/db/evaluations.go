package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-matcher/internal/types"
)

const evaluationColumns = `e.id::text, e.user_id::text, e.job_id, e.llm_score, e.llm_evaluation,
       e.user_score, e.user_feedback, j.company_name, j.title, e.created_at, e.updated_at`

func scanEvaluation(row pgx.Row) (types.StoredEvaluation, error) {
	var (
		e         types.StoredEvaluation
		userScore *int32
	)
	err := row.Scan(&e.ID, &e.UserID, &e.JobID, &e.FitScore, &e.Rationale,
		&userScore, &e.UserFeedback, &e.CompanyName, &e.Title, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	if userScore != nil {
		s := int(*userScore)
		e.UserScore = &s
	}
	return e, nil
}

// SaveEvaluations stores a run's evaluations for the user. A job evaluated
// again replaces the previous score and rationale and keeps the user rating.
func (db *DB) SaveEvaluations(ctx context.Context, userID string, evaluations []types.JobEvaluation) ([]types.StoredEvaluation, error) {
	id, ok := parseID(userID)
	if !ok {
		return nil, &types.ErrUserNotFound{UserID: userID}
	}
	if len(evaluations) == 0 {
		return nil, nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && rErr != pgx.ErrTxClosed {
			_ = rErr
		}
	}()

	saved := make([]types.StoredEvaluation, 0, len(evaluations))
	for _, ev := range evaluations {
		row := tx.QueryRow(ctx,
			`WITH e AS (
			     INSERT INTO job_evaluations (user_id, job_id, llm_score, llm_evaluation)
			     VALUES ($1, $2, $3, $4)
			     ON CONFLICT (user_id, job_id) DO UPDATE SET
			         llm_score = EXCLUDED.llm_score,
			         llm_evaluation = EXCLUDED.llm_evaluation,
			         updated_at = NOW()
			     RETURNING *
			 )
			 SELECT `+evaluationColumns+` FROM e JOIN jobs j ON j.id = e.job_id`,
			id, ev.JobID, ev.FitScore, ev.Rationale,
		)
		s, err := scanEvaluation(row)
		if err != nil {
			return nil, fmt.Errorf("failed to save evaluation for job %s: %w", ev.JobID, err)
		}
		saved = append(saved, s)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit evaluations: %w", err)
	}
	return saved, nil
}

// ListEvaluations returns the user's evaluations, best fit first.
func (db *DB) ListEvaluations(ctx context.Context, userID string) ([]types.StoredEvaluation, error) {
	id, ok := parseID(userID)
	if !ok {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+evaluationColumns+`
		 FROM job_evaluations e JOIN jobs j ON j.id = e.job_id
		 WHERE e.user_id = $1
		 ORDER BY e.llm_score DESC, e.job_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var out []types.StoredEvaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RateEvaluation records the user's score and feedback on a stored evaluation.
// It returns nil, nil when the evaluation does not exist.
func (db *DB) RateEvaluation(ctx context.Context, id string, score int, feedback *string) (*types.StoredEvaluation, error) {
	evalID, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	row := db.pool.QueryRow(ctx,
		`WITH e AS (
		     UPDATE job_evaluations
		     SET user_score = $2, user_feedback = $3, updated_at = NOW()
		     WHERE id = $1
		     RETURNING *
		 )
		 SELECT `+evaluationColumns+` FROM e JOIN jobs j ON j.id = e.job_id`,
		evalID, score, feedback,
	)
	e, err := scanEvaluation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to rate evaluation: %w", err)
	}
	return &e, nil
}
