package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/enjaz/request-service/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database holds the database connection pool
type Database struct {
	Pool *pgxpool.Pool
}

var _ store.Store = (*Database)(nil)

// NewDatabase creates a new database connection with retry logic for serverless databases
func NewDatabase(dsn string) (*Database, error) {
	return NewDatabaseWithRetry(dsn, 5, time.Second)
}

// NewDatabaseWithRetry creates a new database connection with configurable retry logic
func NewDatabaseWithRetry(dsn string, maxRetries int, initialDelay time.Duration) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Set pool settings
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Prefer simple protocol to be pooler friendly
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	origHost := poolConfig.ConnConfig.Host

	// Force IPv4 when available by resolving the host to an A record and dialing that IP directly.
	// Falls back to dual stack if no IPv4 is available. Preserve TLS SNI/ServerName with the original host.
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, network, address string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(address)
		if err != nil || host == "" || port == "" {
			host = origHost
			port = "5432"
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err == nil {
			for _, ipa := range ips {
				if ipv4 := ipa.IP.To4(); ipv4 != nil {
					return (&net.Dialer{}).DialContext(ctx, "tcp4", net.JoinHostPort(ipv4.String(), port))
				}
			}
			if len(ips) > 0 {
				return (&net.Dialer{}).DialContext(ctx, "tcp", net.JoinHostPort(ips[0].IP.String(), port))
			}
		}
		return (&net.Dialer{}).DialContext(ctx, "tcp4", address)
	}
	if poolConfig.ConnConfig.TLSConfig != nil && poolConfig.ConnConfig.TLSConfig.ServerName == "" {
		poolConfig.ConnConfig.TLSConfig.ServerName = origHost
	}

	var pool *pgxpool.Pool
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[REQUEST-DB] Connection attempt %d/%d to database %s@%s:%d",
			attempt, maxRetries, poolConfig.ConnConfig.User, poolConfig.ConnConfig.Host, poolConfig.ConnConfig.Port)

		pool, err = pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			lastErr = fmt.Errorf("failed to create connection pool: %w", err)
			log.Printf("[REQUEST-DB] Failed to create pool (attempt %d): %v", attempt, err)
			if attempt < maxRetries {
				time.Sleep(initialDelay * time.Duration(1<<(attempt-1)))
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pool.Ping(ctx)
		cancel()

		if err == nil {
			log.Printf("[REQUEST-DB] Successfully connected to database on attempt %d", attempt)
			break
		}

		lastErr = fmt.Errorf("failed to ping database: %w", err)
		log.Printf("[REQUEST-DB] Connection failed (attempt %d): %v", attempt, err)
		pool.Close()
		pool = nil

		if attempt < maxRetries {
			// Exponential backoff: 1s, 2s, 4s, 8s, 16s
			delay := initialDelay * time.Duration(1<<(attempt-1))
			log.Printf("[REQUEST-DB] Retrying in %v...", delay)
			time.Sleep(delay)
		}
	}

	if pool == nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
	}

	db := &Database{Pool: pool}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Println("[REQUEST-DB] Database connection established successfully")
	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
		log.Println("Request service database connection pool closed")
	}
}

// Ping checks if the database is reachable
func (db *Database) Ping(ctx context.Context) error {
	if err := db.ready(); err != nil {
		return err
	}
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return nil
}

func (db *Database) ready() error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("%w: database not initialized", store.ErrStoreUnavailable)
	}
	return nil
}

// InitSchema creates the tables if they are missing
func (db *Database) InitSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	log.Println("Request service database schema verified successfully")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agencies (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon        TEXT NOT NULL DEFAULT '',
		color       TEXT NOT NULL DEFAULT '',
		position    BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id           TEXT PRIMARY KEY,
		agency_id    TEXT NOT NULL REFERENCES agencies(id),
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		price        NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		requirements TEXT[] NOT NULL DEFAULT '{}',
		position     BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_services_agency ON services(agency_id)`,
	// service_id has no foreign key: requests outlive deleted services and keep service_title
	`CREATE TABLE IF NOT EXISTS requests (
		id              TEXT PRIMARY KEY,
		tracking_number TEXT NOT NULL,
		user_id         TEXT NOT NULL,
		user_name       TEXT NOT NULL DEFAULT '',
		service_id      TEXT NOT NULL,
		service_title   TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL CHECK (status IN ('PENDING','PROCESSING','COMPLETED','REJECTED','ACTION_REQUIRED')),
		notes           TEXT NOT NULL DEFAULT '',
		attachments     JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		position        BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_user_created ON requests(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		request_id  TEXT NOT NULL REFERENCES requests(id),
		sender_id   TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL CHECK (btrim(content) <> ''),
		is_admin    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL,
		position    BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_request_created ON messages(request_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS request_status_changes (
		id         TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id),
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		changed_by TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		forced     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		position   BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_status_changes_request ON request_status_changes(request_id)`,
}

// classify maps driver errors onto the store error taxonomy
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", what, store.ErrNotFound)
		case "23505", "23514", "22P02": // unique_violation, check_violation, invalid_text_representation
			return fmt.Errorf("%s: %w: %s", what, store.ErrInvalidArgument, pgErr.Message)
		case "57P01", "57P03", "08000", "08003", "08006": // admin_shutdown, cannot_connect_now, connection errors
			return fmt.Errorf("%s: %w: %v", what, store.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", what, store.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
