package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-matcher/internal/types"
)

// GetProfileByUser retrieves the user's profile. It returns nil, nil when the
// user or the profile does not exist.
func (db *DB) GetProfileByUser(ctx context.Context, userID string) (*types.UserProfile, error) {
	id, ok := parseID(userID)
	if !ok {
		return nil, nil
	}

	var p types.UserProfile
	err := db.pool.QueryRow(ctx,
		`SELECT name, work_experience, skills, education, certifications, other_info
		 FROM user_profiles WHERE user_id = $1`,
		id,
	).Scan(&p.Name, &p.WorkExperience, &p.Skills, &p.Education, &p.Certifications, &p.OtherInfo)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile stores the user's profile. The user row is locked for the
// duration of the transaction, so a profile is never written for a user that
// does not exist or is being deleted.
func (db *DB) UpsertProfile(ctx context.Context, userID string, p *types.UserProfile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	id, ok := parseID(userID)
	if !ok {
		return &types.ErrUserNotFound{UserID: userID}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && rErr != pgx.ErrTxClosed {
			_ = rErr
		}
	}()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id::text FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &types.ErrUserNotFound{UserID: userID}
		}
		return fmt.Errorf("failed to lock user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_profiles (user_id, name, work_experience, skills, education, certifications, other_info)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		     name = EXCLUDED.name,
		     work_experience = EXCLUDED.work_experience,
		     skills = EXCLUDED.skills,
		     education = EXCLUDED.education,
		     certifications = EXCLUDED.certifications,
		     other_info = EXCLUDED.other_info,
		     updated_at = NOW()`,
		id, p.Name, p.WorkExperience, p.Skills, p.Education, p.Certifications, p.OtherInfo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}
	return nil
}
