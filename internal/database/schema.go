package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS businesses (
		id           BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		timezone     VARCHAR(64) NULL,
		reset_hour   TINYINT NULL,
		reset_minute TINYINT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id                   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		business_id          BIGINT UNSIGNED NOT NULL,
		customer_ref         VARCHAR(128) NULL,
		expected_guest_count INT NOT NULL,
		reserved_at          DATETIME(3) NOT NULL,
		status               VARCHAR(16) NOT NULL,
		created_at           DATETIME(3) NOT NULL,
		updated_at           DATETIME(3) NOT NULL,
		KEY idx_reservations_business_time (business_id, reserved_at),
		KEY idx_reservations_business_status (business_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS checkin_tokens (
		token          VARCHAR(64) NOT NULL PRIMARY KEY,
		business_id    BIGINT UNSIGNED NOT NULL,
		reservation_id BIGINT UNSIGNED NOT NULL,
		status         VARCHAR(16) NOT NULL,
		scan_count     INT NOT NULL DEFAULT 0,
		expires_at     DATETIME(3) NULL,
		last_scan_at   DATETIME(3) NULL,
		created_at     DATETIME(3) NOT NULL,
		UNIQUE KEY uq_checkin_tokens_reservation (reservation_id),
		KEY idx_checkin_tokens_business (business_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS attendance_records (
		reservation_id     BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		business_id        BIGINT UNSIGNED NOT NULL,
		actual_guest_count INT NOT NULL,
		is_manual_override BOOLEAN NOT NULL DEFAULT FALSE,
		source             VARCHAR(16) NOT NULL,
		recorded_at        DATETIME(3) NOT NULL,
		KEY idx_attendance_business (business_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables.  It never alters existing ones.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
