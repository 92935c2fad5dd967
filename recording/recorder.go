// Package recording stores a diagnostic trail of a test run in a SQLite
// database: one row per phase transition and one row per emergency-cleanup
// step. The trail is for post-mortem inspection; nothing in the engine reads
// it back at runtime.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A Recorder persists phase transitions and cleanup steps.
type Recorder interface {
	// RecordPhase writes one row describing a phase transition of a
	// driver.
	RecordPhase(driverID, phase, status, note string)

	// RecordCleanup writes one row describing a completed emergency
	// cleanup step.
	RecordCleanup(driverID, step, detail string)

	// Flush writes all buffered rows to the database.
	Flush()

	// Close flushes and releases the database.
	Close()
}

type phaseRow struct {
	at     int64
	driver string
	phase  string
	status string
	note   string
}

type cleanupRow struct {
	at     int64
	driver string
	step   string
	detail string
}

// sqliteRecorder buffers rows and writes them in batches.
type sqliteRecorder struct {
	db *sql.DB

	lock     sync.Mutex
	phases   []phaseRow
	cleanups []cleanupRow

	batchSize int
}

// New creates a Recorder backed by a SQLite file at the given path. An empty
// path picks a unique name in the working directory. New panics if the file
// already exists or the schema cannot be created. The recorder flushes at
// exit.
func New(path string) Recorder {
	if path == "" {
		path = "stagehand_run_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	r := newWithDB(db)

	atexit.Register(func() { r.Flush() })

	return r
}

// NewWithDB creates a Recorder on an already-open database. Used by tests
// that record into an in-memory database.
func NewWithDB(db *sql.DB) Recorder {
	r := newWithDB(db)

	atexit.Register(func() { r.Flush() })

	return r
}

func newWithDB(db *sql.DB) *sqliteRecorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: 128,
	}

	r.mustExecute(`CREATE TABLE phase_log (
		at INTEGER,
		driver TEXT,
		phase TEXT,
		status TEXT,
		note TEXT
	);`)
	r.mustExecute(`CREATE TABLE cleanup_log (
		at INTEGER,
		driver TEXT,
		step TEXT,
		detail TEXT
	);`)

	return r
}

func (r *sqliteRecorder) mustExecute(query string, args ...any) sql.Result {
	res, err := r.db.Exec(query, args...)
	if err != nil {
		panic(fmt.Errorf("recording: %s: %w", query, err))
	}

	return res
}

// RecordPhase buffers one phase-transition row.
func (r *sqliteRecorder) RecordPhase(driverID, phase, status, note string) {
	r.lock.Lock()
	r.phases = append(r.phases, phaseRow{
		at:     time.Now().UnixNano(),
		driver: driverID,
		phase:  phase,
		status: status,
		note:   note,
	})
	full := len(r.phases)+len(r.cleanups) >= r.batchSize
	r.lock.Unlock()

	if full {
		r.Flush()
	}
}

// RecordCleanup buffers one cleanup-step row.
func (r *sqliteRecorder) RecordCleanup(driverID, step, detail string) {
	r.lock.Lock()
	r.cleanups = append(r.cleanups, cleanupRow{
		at:     time.Now().UnixNano(),
		driver: driverID,
		step:   step,
		detail: detail,
	})
	full := len(r.phases)+len(r.cleanups) >= r.batchSize
	r.lock.Unlock()

	if full {
		r.Flush()
	}
}

// Flush writes all buffered rows in one transaction.
func (r *sqliteRecorder) Flush() {
	r.lock.Lock()
	phases := r.phases
	cleanups := r.cleanups
	r.phases = nil
	r.cleanups = nil
	r.lock.Unlock()

	if len(phases) == 0 && len(cleanups) == 0 {
		return
	}

	r.mustExecute("BEGIN TRANSACTION")
	defer r.mustExecute("COMMIT TRANSACTION")

	for _, p := range phases {
		r.mustExecute(
			"INSERT INTO phase_log (at, driver, phase, status, note) "+
				"VALUES (?, ?, ?, ?, ?)",
			p.at, p.driver, p.phase, p.status, p.note,
		)
	}

	for _, c := range cleanups {
		r.mustExecute(
			"INSERT INTO cleanup_log (at, driver, step, detail) "+
				"VALUES (?, ?, ?, ?)",
			c.at, c.driver, c.step, c.detail,
		)
	}
}

// Close flushes and closes the database.
func (r *sqliteRecorder) Close() {
	r.Flush()

	err := r.db.Close()
	if err != nil {
		panic(err)
	}
}
