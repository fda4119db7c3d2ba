package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// InsertReading persists one observation
func (db *DB) InsertReading(row *ReadingRow) error {
	query := `
		INSERT INTO readings (
			metric, location_key, observed_at, value, category, detail, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	return db.QueryRow(
		query,
		row.Metric,
		row.LocationKey,
		row.ObservedAt,
		row.Value,
		row.Category,
		row.Detail,
		row.ReceivedAt,
	).Scan(&row.ID)
}

// LatestReadings returns up to limit most recent readings for a key,
// oldest first, for warming the in-memory history after a restart
func (db *DB) LatestReadings(metric, locationKey string, limit int) ([]*ReadingRow, error) {
	query := `
		SELECT id, metric, location_key, observed_at, value, category, detail, received_at
		FROM (
			SELECT id, metric, location_key, observed_at, value, category, detail, received_at
			FROM readings
			WHERE metric = $1 AND location_key = $2
			ORDER BY observed_at DESC, id DESC
			LIMIT $3
		) tail
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := db.Query(query, metric, locationKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*ReadingRow
	for rows.Next() {
		var r ReadingRow
		if err := rows.Scan(
			&r.ID,
			&r.Metric,
			&r.LocationKey,
			&r.ObservedAt,
			&r.Value,
			&r.Category,
			&r.Detail,
			&r.ReceivedAt,
		); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}

	return readings, rows.Err()
}

// InsertAlertLog records one emitted alert event
func (db *DB) InsertAlertLog(row *AlertRow) error {
	query := `
		INSERT INTO alert_log (
			event_id, metric, location_key, previous_severity, new_severity,
			observed_at, message, emitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	return db.QueryRow(
		query,
		row.EventID,
		row.Metric,
		row.LocationKey,
		row.PreviousSeverity,
		row.NewSeverity,
		row.ObservedAt,
		row.Message,
		row.EmittedAt,
	).Scan(&row.ID)
}

// RecentAlerts returns the most recent alert log entries, newest first
func (db *DB) RecentAlerts(limit int) ([]*AlertRow, error) {
	query := `
		SELECT id, event_id, metric, location_key, previous_severity, new_severity,
		       observed_at, message, emitted_at, created_at
		FROM alert_log
		ORDER BY emitted_at DESC
		LIMIT $1
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*AlertRow
	for rows.Next() {
		var a AlertRow
		if err := rows.Scan(
			&a.ID,
			&a.EventID,
			&a.Metric,
			&a.LocationKey,
			&a.PreviousSeverity,
			&a.NewSeverity,
			&a.ObservedAt,
			&a.Message,
			&a.EmittedAt,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}
