package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Catalog tables are owned by the catalog service in production; they are
// created here so the core runs standalone.  seat_slots and bookings are
// the reservation core's own state.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cinemas (
		id         CHAR(36)     NOT NULL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS screens (
		id         CHAR(36)     NOT NULL PRIMARY KEY,
		cinema_id  CHAR(36)     NOT NULL,
		name       VARCHAR(255) NOT NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_screens_cinema FOREIGN KEY (cinema_id) REFERENCES cinemas (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movies (
		id               CHAR(36)     NOT NULL PRIMARY KEY,
		title            VARCHAR(255) NOT NULL,
		duration_minutes INT          NOT NULL,
		created_at       DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id          CHAR(36)    NOT NULL PRIMARY KEY,
		screen_id   CHAR(36)    NOT NULL,
		seat_number VARCHAR(16) NOT NULL,
		seat_type   VARCHAR(32) NOT NULL DEFAULT 'STANDARD',
		is_active   BOOLEAN     NOT NULL DEFAULT TRUE,
		UNIQUE KEY uq_seats_screen_number (screen_id, seat_number),
		CONSTRAINT fk_seats_screen FOREIGN KEY (screen_id) REFERENCES screens (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS showtimes (
		id         CHAR(36) NOT NULL PRIMARY KEY,
		movie_id   CHAR(36) NOT NULL,
		screen_id  CHAR(36) NOT NULL,
		starts_at  DATETIME NOT NULL,
		ends_at    DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_showtimes_screen_time (screen_id, starts_at),
		CONSTRAINT fk_showtimes_movie FOREIGN KEY (movie_id) REFERENCES movies (id),
		CONSTRAINT fk_showtimes_screen FOREIGN KEY (screen_id) REFERENCES screens (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                CHAR(36)    NOT NULL PRIMARY KEY,
		user_id           CHAR(36)    NOT NULL,
		showtime_id       CHAR(36)    NOT NULL,
		status            VARCHAR(16) NOT NULL,
		seat_count        INT         NOT NULL DEFAULT 0,
		total_price_cents BIGINT      NOT NULL DEFAULT 0,
		expires_at        DATETIME(6) NOT NULL,
		confirmed_at      DATETIME(6) NULL,
		created_at        DATETIME(6) NOT NULL,
		updated_at        DATETIME(6) NOT NULL,
		KEY idx_bookings_user_created (user_id, created_at),
		KEY idx_bookings_status_expiry (status, expires_at),
		CONSTRAINT fk_bookings_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seat_slots (
		showtime_id CHAR(36)    NOT NULL,
		seat_id     CHAR(36)    NOT NULL,
		seat_number VARCHAR(16) NOT NULL,
		seat_type   VARCHAR(32) NOT NULL,
		status      VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
		booking_id  CHAR(36)    NULL,
		held_until  DATETIME(6) NULL,
		price_cents BIGINT      NOT NULL,
		created_at  DATETIME(6) NOT NULL,
		updated_at  DATETIME(6) NOT NULL,
		PRIMARY KEY (showtime_id, seat_id),
		KEY idx_seat_slots_booking (booking_id),
		CONSTRAINT fk_seat_slots_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id),
		CONSTRAINT fk_seat_slots_seat FOREIGN KEY (seat_id) REFERENCES seats (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
