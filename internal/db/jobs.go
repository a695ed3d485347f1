package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/jonathan/job-matcher/internal/types"
)

const jobColumns = `id, company_name, title, description, industry, region_id,
       employment_grades, employment_position_ids, employment_type_ids, external_url`

func scanJob(row pgx.Row) (types.JobRecord, error) {
	var (
		j                                                 types.JobRecord
		industry, region, grades, positions, kinds, extURL *string
	)
	err := row.Scan(&j.ID, &j.CompanyName, &j.Title, &j.Description,
		&industry, &region, &grades, &positions, &kinds, &extURL)
	if err != nil {
		return j, err
	}
	j.Industry = derefString(industry)
	j.RegionID = derefString(region)
	j.EmploymentGrades = derefString(grades)
	j.EmploymentPositionIDs = derefString(positions)
	j.EmploymentTypeIDs = derefString(kinds)
	j.ExternalURL = derefString(extURL)
	return j, nil
}

// GetJobsByIDs fetches the active jobs with the given IDs in one query. Unknown
// IDs are skipped and the order is unspecified.
func (db *DB) GetJobsByIDs(ctx context.Context, ids []string) ([]types.JobRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}
	return jobs, nil
}

// UpsertJobs inserts or updates job records in one transaction. A job whose
// title or description changed loses its embedding so it is indexed again.
func (db *DB) UpsertJobs(ctx context.Context, jobs []types.JobRecord) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && rErr != pgx.ErrTxClosed {
			_ = rErr
		}
	}()

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(
			`INSERT INTO jobs (id, company_name, title, description, industry, region_id,
			                   employment_grades, employment_position_ids, employment_type_ids, external_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			     company_name = EXCLUDED.company_name,
			     title = EXCLUDED.title,
			     description = EXCLUDED.description,
			     industry = EXCLUDED.industry,
			     region_id = EXCLUDED.region_id,
			     employment_grades = EXCLUDED.employment_grades,
			     employment_position_ids = EXCLUDED.employment_position_ids,
			     employment_type_ids = EXCLUDED.employment_type_ids,
			     external_url = EXCLUDED.external_url,
			     is_active = TRUE,
			     embedding = CASE
			         WHEN jobs.title = EXCLUDED.title AND jobs.description = EXCLUDED.description THEN jobs.embedding
			     END,
			     embedded_at = CASE
			         WHEN jobs.title = EXCLUDED.title AND jobs.description = EXCLUDED.description THEN jobs.embedded_at
			     END,
			     updated_at = NOW()`,
			j.ID, j.CompanyName, j.Title, j.Description,
			nullIfEmpty(j.Industry), nullIfEmpty(j.RegionID), nullIfEmpty(j.EmploymentGrades),
			nullIfEmpty(j.EmploymentPositionIDs), nullIfEmpty(j.EmploymentTypeIDs), nullIfEmpty(j.ExternalURL),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range jobs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("failed to upsert job %s: %w", jobs[i].ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to upsert jobs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit jobs: %w", err)
	}
	return len(jobs), nil
}

// DeactivateJobs hides jobs from retrieval without deleting their evaluations.
func (db *DB) DeactivateJobs(ctx context.Context, ids []string) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET is_active = FALSE, updated_at = NOW() WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListJobsWithoutEmbedding returns up to limit active, unindexed jobs with IDs
// greater than afterID, in ID order. Pass the last ID of a page to get the next.
func (db *DB) ListJobsWithoutEmbedding(ctx context.Context, afterID string, limit int) ([]types.JobRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE embedding IS NULL AND is_active AND id > $1
		 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unindexed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// SaveJobEmbedding stores the embedding vector of a job.
func (db *DB) SaveJobEmbedding(ctx context.Context, jobID string, embedding []float32) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET embedding = $2::vector, embedded_at = NOW() WHERE id = $1`,
		jobID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to save embedding for job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to save embedding: job %s not found", jobID)
	}
	return nil
}

// NearestJobs returns the k active jobs closest to the embedding by cosine
// distance. Score is the cosine similarity, higher is closer.
func (db *DB) NearestJobs(ctx context.Context, embedding []float32, k int) ([]types.ScoredJob, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1::vector) AS score
		 FROM jobs
		 WHERE embedding IS NOT NULL AND is_active
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`,
		pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}
	defer rows.Close()

	var hits []types.ScoredJob
	for rows.Next() {
		var h types.ScoredJob
		if err := rows.Scan(&h.JobID, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan job hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
