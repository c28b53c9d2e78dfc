package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("archive")

const minCleanupInterval = 60 * time.Second

// sqliteArchive persists every snapshot beyond the in-memory history
type sqliteArchive struct {
	db               *sql.DB
	retentionSeconds int
	timeFunc         func() time.Time
	cancelFunc       context.CancelFunc
	wg               sync.WaitGroup
}

// NewSQLiteArchive creates the database, schema, and starts the retention cleaner
func NewSQLiteArchive(dbPath string, retentionSeconds int) (*sqliteArchive, error) {
	err := prepareDirectories(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create the archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps in-memory databases shared between calls
	db.SetMaxOpenConns(1)

	err = createSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &sqliteArchive{
		db:               db,
		retentionSeconds: retentionSeconds,
		timeFunc:         time.Now,
		cancelFunc:       cancel,
	}

	a.startRetentionCleaner(ctx)

	return a, nil
}

func prepareDirectories(dbPath string) error {
	return os.MkdirAll(filepath.Dir(dbPath), os.ModePerm)
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		recorded_at INTEGER NOT NULL,
		sensor      TEXT    NOT NULL,
		metric      TEXT    NOT NULL,
		value       REAL,
		alert_state TEXT    NOT NULL DEFAULT 'normal',
		PRIMARY KEY (recorded_at, sensor, metric)
	);

	CREATE INDEX IF NOT EXISTS idx_readings_alert_state ON readings(alert_state);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Report stores the snapshot together with the alert states computed for it
func (a *sqliteArchive) Report(ctx context.Context, snapshot common.Snapshot, states common.AlertStates) error {
	return a.SaveSnapshot(ctx, snapshot, states)
}

// SaveSnapshot inserts one row per metric of the snapshot in a single transaction. Saving the same
// timestamp twice replaces the previous rows.
func (a *sqliteArchive) SaveSnapshot(ctx context.Context, snapshot common.Snapshot, states common.AlertStates) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (recorded_at, sensor, metric, value, alert_state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(recorded_at, sensor, metric) DO UPDATE SET
			value=excluded.value,
			alert_state=excluded.alert_state
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for sensor, metrics := range snapshot.Readings {
		for metric, value := range metrics {
			var dbValue sql.NullFloat64
			if value != nil {
				dbValue = sql.NullFloat64{Float64: *value, Valid: true}
			}

			state := states[common.MetricKey{Sensor: sensor, Metric: metric}]
			_, err = stmt.ExecContext(ctx, snapshot.Timestamp, string(sensor), string(metric), dbValue, state.String())
			if err != nil {
				return fmt.Errorf("failed to insert reading: %w", err)
			}
		}
	}

	return tx.Commit()
}

// QueryRange returns the archived snapshots with from <= timestamp <= to, in chronological order
func (a *sqliteArchive) QueryRange(ctx context.Context, from int64, to int64) ([]common.Snapshot, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT recorded_at, sensor, metric, value
		FROM readings
		WHERE recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at, sensor, metric
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return scanSnapshots(rows)
}

// Latest returns the most recent archived snapshot
func (a *sqliteArchive) Latest(ctx context.Context) (common.Snapshot, bool, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT recorded_at, sensor, metric, value
		FROM readings
		WHERE recorded_at = (SELECT MAX(recorded_at) FROM readings)
	`)
	if err != nil {
		return common.Snapshot{}, false, fmt.Errorf("query failed: %w", err)
	}

	snapshots, err := scanSnapshots(rows)
	if err != nil || len(snapshots) == 0 {
		return common.Snapshot{}, false, err
	}

	return snapshots[0], true, nil
}

// AlertHistory returns the alerting readings with from <= timestamp <= to, in chronological order
func (a *sqliteArchive) AlertHistory(ctx context.Context, from int64, to int64) ([]common.AlertRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT recorded_at, sensor, metric, value, alert_state
		FROM readings
		WHERE alert_state != 'normal' AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at, sensor, metric
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]common.AlertRecord, 0)
	for rows.Next() {
		var record common.AlertRecord
		var sensor, metric, state string
		var value sql.NullFloat64

		err = rows.Scan(&record.Timestamp, &sensor, &metric, &value, &state)
		if err != nil {
			return nil, err
		}

		record.Key = common.MetricKey{Sensor: common.SensorType(sensor), Metric: common.MetricType(metric)}
		if value.Valid {
			record.Value = common.Float(value.Float64)
		}
		err = record.State.UnmarshalText([]byte(state))
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func scanSnapshots(rows *sql.Rows) ([]common.Snapshot, error) {
	defer func() {
		_ = rows.Close()
	}()

	snapshots := make([]common.Snapshot, 0)
	for rows.Next() {
		var recordedAt int64
		var sensor, metric string
		var value sql.NullFloat64

		err := rows.Scan(&recordedAt, &sensor, &metric, &value)
		if err != nil {
			return nil, err
		}

		if len(snapshots) == 0 || snapshots[len(snapshots)-1].Timestamp != recordedAt {
			snapshots = append(snapshots, common.Snapshot{
				Timestamp: recordedAt,
				Readings:  make(common.Readings),
			})
		}

		current := snapshots[len(snapshots)-1]
		metrics, found := current.Readings[common.SensorType(sensor)]
		if !found {
			metrics = make(map[common.MetricType]*float64)
			current.Readings[common.SensorType(sensor)] = metrics
		}
		if value.Valid {
			metrics[common.MetricType(metric)] = common.Float(value.Float64)
		} else {
			metrics[common.MetricType(metric)] = nil
		}
	}

	return snapshots, rows.Err()
}

// cleanRetainedReadings executes the retention cleanup query synchronously
func (a *sqliteArchive) cleanRetainedReadings(ctx context.Context) error {
	cutoff := a.timeFunc().Add(-time.Duration(a.retentionSeconds) * time.Second).UnixMilli()
	result, err := a.db.ExecContext(ctx, "DELETE FROM readings WHERE recorded_at < ?", cutoff)
	if err != nil {
		return err
	}

	removed, _ := result.RowsAffected()
	log.Debug("archive retention cleanup done", "removed", removed)

	return nil
}

func (a *sqliteArchive) startRetentionCleaner(ctx context.Context) {
	a.wg.Add(1)

	interval := time.Duration(a.retentionSeconds) * time.Second / 10
	if interval < minCleanupInterval {
		interval = minCleanupInterval
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer a.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := a.cleanRetainedReadings(ctx)
				if err != nil {
					log.Warn("failed to cleanup archived readings", "error", err)
				}
			}
		}
	}()
}

// Close stops the retention cleaner and closes the database
func (a *sqliteArchive) Close() error {
	a.cancelFunc()
	a.wg.Wait()
	return a.db.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (a *sqliteArchive) IsInterfaceNil() bool {
	return a == nil
}
