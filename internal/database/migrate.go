package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the scheduler tables.  Capacity of a class is the number
// of its table_units rows.  Reservation times keep microseconds so a stored
// window never rounds into its neighbour.  Cancelled and completed reservations are kept
// so historical load can be rebuilt.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS table_classes (
        id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        seat_count  INT UNSIGNED    NOT NULL,
        table_kind  VARCHAR(32)     NOT NULL,
        combinable  BOOLEAN         NOT NULL DEFAULT TRUE,
        price_cents INT UNSIGNED    NOT NULL DEFAULT 0,
        created_at  DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at  DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_table_classes_kind (seat_count, table_kind)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS table_units (
        id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        class_id   BIGINT UNSIGNED NOT NULL,
        label      VARCHAR(32)     NOT NULL,
        state      ENUM('AVAILABLE','OCCUPIED') NOT NULL DEFAULT 'AVAILABLE',
        created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        KEY idx_table_units_class_state (class_id, state),
        CONSTRAINT fk_table_units_class FOREIGN KEY (class_id) REFERENCES table_classes (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
        id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        user_id        BIGINT UNSIGNED NOT NULL,
        class_id       BIGINT UNSIGNED NOT NULL,
        starts_at      DATETIME(6)     NOT NULL,
        ends_at        DATETIME(6)     NOT NULL,
        party_size     INT UNSIGNED    NOT NULL,
        units_required INT UNSIGNED    NOT NULL,
        status         ENUM('AVAILABLE','RESERVED','CHECKED_IN','CANCELLED','DONE') NOT NULL,
        edit_count     INT UNSIGNED    NOT NULL DEFAULT 0,
        deposit_cents  INT UNSIGNED    NOT NULL DEFAULT 0,
        created_at     DATETIME(6)     NOT NULL,
        updated_at     DATETIME(6)     NOT NULL,
        PRIMARY KEY (id),
        KEY idx_reservations_class_window (class_id, status, starts_at),
        KEY idx_reservations_user (user_id, created_at),
        CONSTRAINT fk_reservations_class FOREIGN KEY (class_id) REFERENCES table_classes (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservation_units (
        reservation_id BIGINT UNSIGNED NOT NULL,
        unit_id        BIGINT UNSIGNED NOT NULL,
        PRIMARY KEY (reservation_id, unit_id),
        CONSTRAINT fk_reservation_units_res FOREIGN KEY (reservation_id) REFERENCES reservations (id),
        CONSTRAINT fk_reservation_units_unit FOREIGN KEY (unit_id) REFERENCES table_units (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
