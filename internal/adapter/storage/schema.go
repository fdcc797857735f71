package storage

// Timestamps are stored as Unix nanoseconds so both dialects compare and
// order them identically.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id                 BIGINT AUTO_INCREMENT PRIMARY KEY,
		code               VARCHAR(64)  NOT NULL,
		name               VARCHAR(200) NOT NULL,
		type               VARCHAR(50)  NOT NULL DEFAULT 'rj45',
		category           VARCHAR(50)  NOT NULL DEFAULT 'cable',
		location           VARCHAR(200) NOT NULL DEFAULT '',
		description        TEXT         NOT NULL,
		attributes         TEXT         NOT NULL,
		quantity_total     INT          NOT NULL,
		quantity_available INT          NOT NULL,
		quantity_initial   INT          NOT NULL,
		created_by         BIGINT       NOT NULL DEFAULT 0,
		created_at         BIGINT       NOT NULL,
		updated_at         BIGINT       NOT NULL,
		UNIQUE KEY uq_items_code (code),
		KEY idx_items_category (category),
		KEY idx_items_created (created_at),
		CONSTRAINT chk_items_quantity CHECK (quantity_available >= 0 AND quantity_available <= quantity_total)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		item_id    BIGINT       NOT NULL,
		user_id    BIGINT       NOT NULL,
		username   VARCHAR(100) NOT NULL DEFAULT '',
		kind       VARCHAR(16)  NOT NULL,
		quantity   INT          NOT NULL,
		note       TEXT         NOT NULL,
		created_at BIGINT       NOT NULL,
		KEY idx_transactions_item (item_id, created_at),
		KEY idx_transactions_user (user_id, created_at),
		KEY idx_transactions_created (created_at),
		CONSTRAINT fk_transactions_item FOREIGN KEY (item_id) REFERENCES items (id),
		CONSTRAINT chk_transactions_kind CHECK (kind IN ('checkout', 'checkin')),
		CONSTRAINT chk_transactions_quantity CHECK (quantity > 0)
	) ENGINE=InnoDB`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		code               TEXT    NOT NULL UNIQUE,
		name               TEXT    NOT NULL,
		type               TEXT    NOT NULL DEFAULT 'rj45',
		category           TEXT    NOT NULL DEFAULT 'cable',
		location           TEXT    NOT NULL DEFAULT '',
		description        TEXT    NOT NULL DEFAULT '',
		attributes         TEXT    NOT NULL DEFAULT '{}',
		quantity_total     INTEGER NOT NULL,
		quantity_available INTEGER NOT NULL,
		quantity_initial   INTEGER NOT NULL,
		created_by         INTEGER NOT NULL DEFAULT 0,
		created_at         INTEGER NOT NULL,
		updated_at         INTEGER NOT NULL,
		CHECK (quantity_available >= 0 AND quantity_available <= quantity_total)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_category ON items (category)`,
	`CREATE INDEX IF NOT EXISTS idx_items_created ON items (created_at)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id    INTEGER NOT NULL REFERENCES items (id),
		user_id    INTEGER NOT NULL,
		username   TEXT    NOT NULL DEFAULT '',
		kind       TEXT    NOT NULL CHECK (kind IN ('checkout', 'checkin')),
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		note       TEXT    NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_item ON transactions (item_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions (created_at)`,
}
