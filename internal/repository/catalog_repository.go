package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-booking-core/internal/database"
	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// CatalogRepo reads showtimes and screen layouts and schedules new
// showtimes.
type CatalogRepo struct {
	db *sqlx.DB
}

// NewCatalogRepo returns a CatalogRepo bound to db.
func NewCatalogRepo(db *sqlx.DB) *CatalogRepo { return &CatalogRepo{db: db} }

func (r *CatalogRepo) GetShowtime(ctx context.Context, id uuid.UUID) (model.Showtime, error) {
	const q = `SELECT st.id, st.movie_id, st.screen_id, st.starts_at, st.ends_at,
			m.title AS movie_title, c.name AS cinema_name, sc.name AS screen_name
		FROM showtimes st
		JOIN movies m ON m.id = st.movie_id
		JOIN screens sc ON sc.id = st.screen_id
		JOIN cinemas c ON c.id = sc.cinema_id
		WHERE st.id = ?`
	var st model.Showtime
	if err := r.db.GetContext(ctx, &st, q, id); err != nil {
		return model.Showtime{}, notFound(err, store.ErrShowtimeNotFound)
	}
	return st, nil
}

func (r *CatalogRepo) SeatsForScreen(ctx context.Context, screenID uuid.UUID) ([]model.ScreenSeat, error) {
	const q = `SELECT id, screen_id, seat_number, seat_type, is_active
		FROM seats WHERE screen_id = ?
		ORDER BY seat_number`
	seats := []model.ScreenSeat{}
	if err := r.db.SelectContext(ctx, &seats, q, screenID); err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		var exists int
		if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM screens WHERE id = ?`, screenID); err != nil {
			return nil, notFound(err, store.ErrScreenNotFound)
		}
	}
	return seats, nil
}

// ScheduleShowtime inserts st after checking for an overlapping showtime
// on the same screen.  The screen row is locked so two concurrent
// schedules cannot both pass the check.
func (r *CatalogRepo) ScheduleShowtime(ctx context.Context, st model.Showtime) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var screenID uuid.UUID
	if err := tx.GetContext(ctx, &screenID, `SELECT id FROM screens WHERE id = ? FOR UPDATE`, st.ScreenID); err != nil {
		return notFound(err, store.ErrScreenNotFound)
	}

	const overlapQ = `SELECT COUNT(*) FROM showtimes
		WHERE screen_id = ? AND starts_at < ? AND ends_at > ?`
	var clashes int
	if err := tx.GetContext(ctx, &clashes, overlapQ, st.ScreenID, st.EndsAt.UTC(), st.StartsAt.UTC()); err != nil {
		return err
	}
	if clashes > 0 {
		return store.ErrScheduleConflict
	}

	const ins = `INSERT INTO showtimes (id, movie_id, screen_id, starts_at, ends_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins, st.ID, st.MovieID, st.ScreenID, st.StartsAt.UTC(), st.EndsAt.UTC()); err != nil {
		err = database.Classify(err)
		// The screen row is already locked, so the missing parent is the movie.
		if errors.Is(err, store.ErrMissingReference) {
			return errors.Join(store.ErrMovieNotFound, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return database.Classify(err)
	}
	committed = true
	return nil
}

// UnscheduleShowtime deletes a showtime that has no seat slots.  A
// showtime with slots, or one already gone, is left as is.
func (r *CatalogRepo) UnscheduleShowtime(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM showtimes
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM seat_slots WHERE showtime_id = ?)`
	if _, err := r.db.ExecContext(ctx, q, id, id); err != nil {
		return database.Classify(err)
	}
	return nil
}
