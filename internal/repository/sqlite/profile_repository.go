package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/repository"
)

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new ProfileRepository implementation
func NewProfileRepository(db *sql.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, id int64) (*models.Profile, error) {
	log := logger.FromContext(ctx).WithPrefix("profile_repo")

	var p models.Profile
	var lastSync sql.NullTime
	err := r.db.QueryRowContext(ctx, `
SELECT id, chesscom_username, lichess_username, created_at, last_sync_at
FROM profiles
WHERE id = ?
`, id).Scan(&p.ID, &p.ChessComUsername, &p.LichessUsername, &p.CreatedAt, &lastSync)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("profile not found: id=%d", id)
			return nil, nil
		}
		log.Error("failed to get profile: %v", err)
		return nil, apperrors.NewDatabaseError(err)
	}
	if lastSync.Valid {
		t := lastSync.Time.UTC()
		p.LastSyncAt = &t
	}
	return &p, nil
}

func (r *profileRepository) List(ctx context.Context) ([]models.Profile, error) {
	log := logger.FromContext(ctx).WithPrefix("profile_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT id, chesscom_username, lichess_username, created_at, last_sync_at
FROM profiles
ORDER BY id
`)
	if err != nil {
		log.Error("failed to list profiles: %v", err)
		return nil, apperrors.NewDatabaseError(err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		var lastSync sql.NullTime
		if err := rows.Scan(&p.ID, &p.ChessComUsername, &p.LichessUsername, &p.CreatedAt, &lastSync); err != nil {
			log.Error("failed to scan profile row: %v", err)
			return nil, apperrors.NewDatabaseError(err)
		}
		if lastSync.Valid {
			t := lastSync.Time.UTC()
			p.LastSyncAt = &t
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *profileRepository) Create(ctx context.Context, chessComUsername, lichessUsername string) (*models.Profile, error) {
	log := logger.FromContext(ctx).WithPrefix("profile_repo")
	log.Debug("creating profile: chesscom=%s, lichess=%s", chessComUsername, lichessUsername)

	res, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (chesscom_username, lichess_username) VALUES (?, ?)
`, chessComUsername, lichessUsername)
	if err != nil {
		log.Error("failed to create profile: %v", err)
		return nil, apperrors.NewDatabaseError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return r.Get(ctx, id)
}

func (r *profileRepository) UpdateSync(ctx context.Context, id int64, t time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("profile_repo")
	log.Debug("updating last sync: profile_id=%d", id)

	_, err := r.db.ExecContext(ctx, `UPDATE profiles SET last_sync_at = ? WHERE id = ?`, t.UTC(), id)
	if err != nil {
		log.Error("failed to update last sync: %v", err)
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

func (r *profileRepository) Delete(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx).WithPrefix("profile_repo")
	log.Debug("deleting profile: id=%d", id)

	_, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete profile: %v", err)
		return apperrors.NewDatabaseError(err)
	}
	return nil
}
