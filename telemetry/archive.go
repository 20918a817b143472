package telemetry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Run describes one archived simulation run.
type Run struct {
	ID        string `db:"id"`
	Seed      int64  `db:"seed"`
	StartedAt string `db:"started_at"` // RFC 3339
	Config    string `db:"config"`     // YAML
}

// NewRun creates a run record with a fresh ID.
func NewRun(seed int64, configYAML []byte) Run {
	return Run{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Config:    string(configYAML),
	}
}

// windowRow is a WindowStats row tagged with its run.
type windowRow struct {
	RunID string `db:"run_id"`
	WindowStats
}

const windowColumns = `window_start, window_end, sim_time, boids, predators,
	speed_mean, speed_std, speed_p10, speed_p50, speed_p90,
	polarization, mean_neighbors, nearest_neighbor, spread,
	obstacle_deviations, blocked_probes, wander_impulses, predator_encounters`

const windowValues = `:window_start, :window_end, :sim_time, :boids, :predators,
	:speed_mean, :speed_std, :speed_p10, :speed_p50, :speed_p90,
	:polarization, :mean_neighbors, :nearest_neighbor, :spread,
	:obstacle_deviations, :blocked_probes, :wander_impulses, :predator_encounters`

// Archive stores runs and their window stats in SQLite.
type Archive struct {
	conn *sqlx.DB
}

// OpenArchive opens or creates an archive database at path.
func OpenArchive(path string) (*Archive, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	conn.SetMaxOpenConns(1)

	a := &Archive{conn: conn}
	if err := a.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	return a.conn.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		config TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS windows (
		run_id TEXT NOT NULL REFERENCES runs(id),
		window_start INTEGER NOT NULL,
		window_end INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		boids INTEGER NOT NULL,
		predators INTEGER NOT NULL,
		speed_mean REAL NOT NULL,
		speed_std REAL NOT NULL,
		speed_p10 REAL NOT NULL,
		speed_p50 REAL NOT NULL,
		speed_p90 REAL NOT NULL,
		polarization REAL NOT NULL,
		mean_neighbors REAL NOT NULL,
		nearest_neighbor REAL NOT NULL,
		spread REAL NOT NULL,
		obstacle_deviations INTEGER NOT NULL,
		blocked_probes INTEGER NOT NULL,
		wander_impulses INTEGER NOT NULL,
		predator_encounters INTEGER NOT NULL,
		PRIMARY KEY (run_id, window_end)
	);
	`
	_, err := a.conn.Exec(schema)
	return err
}

// StartRun records a new run.
func (a *Archive) StartRun(run Run) error {
	if a == nil {
		return nil
	}
	_, err := a.conn.NamedExec(`INSERT INTO runs (id, seed, started_at, config)
		VALUES (:id, :seed, :started_at, :config)`, run)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordWindow stores one window of a run.
func (a *Archive) RecordWindow(runID string, stats WindowStats) error {
	if a == nil {
		return nil
	}
	_, err := a.conn.NamedExec(
		`INSERT INTO windows (run_id, `+windowColumns+`) VALUES (:run_id, `+windowValues+`)`,
		windowRow{RunID: runID, WindowStats: stats},
	)
	if err != nil {
		return fmt.Errorf("insert window: %w", err)
	}
	return nil
}

// Runs lists archived runs, oldest first.
func (a *Archive) Runs() ([]Run, error) {
	var runs []Run
	if err := a.conn.Select(&runs, `SELECT id, seed, started_at, config FROM runs ORDER BY started_at, id`); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

// Windows returns the windows of a run in tick order.
func (a *Archive) Windows(runID string) ([]WindowStats, error) {
	var windows []WindowStats
	err := a.conn.Select(&windows,
		`SELECT `+windowColumns+` FROM windows WHERE run_id = ? ORDER BY window_end`, runID)
	if err != nil {
		return nil, fmt.Errorf("select windows: %w", err)
	}
	return windows, nil
}
