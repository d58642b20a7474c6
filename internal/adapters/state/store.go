// Package state implements the transactional persistence layer on SQLite.
package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	// SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.StateStore on a single SQLite database file. It is
// the single source of truth for durable state; everything the scheduler
// keeps in memory is a cache rebuilt from here.
type Store struct {
	db *sql.DB
}

var _ ports.StateStore = (*Store)(nil)

// NewStore opens (and if necessary bootstraps) the database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open state database")
	}
	// SQLite allows one writer; serializing connections avoids SQLITE_BUSY
	// under concurrent completions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck,gosec // error path
		return nil, zerr.Wrap(err, "failed to bootstrap state schema")
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterPackage creates the package row if it does not exist yet.
func (s *Store) RegisterPackage(ctx context.Context, name string) error {
	if name == "" {
		return zerr.New("package name is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO packages (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to register package"), "package", name)
	}
	return nil
}

// RegisterVersion persists a validated version with its dependency edges.
// Everything happens in one transaction: the version is either fully
// registered or absent.
func (s *Store) RegisterVersion(ctx context.Context, pv *domain.PackageVersion) error {
	if err := pv.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	pkgID, err := upsertPackage(ctx, tx, pv.Package)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO package_versions (package_id, version, status, ram_mb, cpu_cores, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (package_id, version) DO NOTHING`,
		pkgID, pv.Version, domain.StatusPending.String(), pv.RAMMB, pv.CPUCores, time.Now().UTC())
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to insert version"), "ref", pv.Ref())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return zerr.With(zerr.New("version already registered"), "ref", pv.Ref())
	}

	var versionID int64
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM package_versions WHERE package_id = ? AND version = ?`, pkgID, pv.Version)
	if err := row.Scan(&versionID); err != nil {
		return zerr.Wrap(err, "failed to read back version id")
	}

	for _, req := range pv.Requirements {
		reqID, err := upsertPackage(ctx, tx, req.Package)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dependency_edges (version_id, required_package_id, constraint_expr, kind)
			 VALUES (?, ?, ?, ?)`,
			versionID, reqID, req.Constraint.String(), req.Kind.String()); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to insert dependency edge"), "ref", pv.Ref())
		}
	}

	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, "failed to commit registration")
	}
	return nil
}

// Version loads a single package version.
func (s *Store) Version(ctx context.Context, name, version string) (*domain.PackageVersion, error) {
	pvs, err := s.loadVersions(ctx,
		`WHERE p.name = ? AND v.version = ?`, name, version)
	if err != nil {
		return nil, err
	}
	if len(pvs) == 0 {
		return nil, zerr.With(domain.ErrPackageNotRegistered, "ref", domain.Ref(name, version))
	}
	return pvs[0], nil
}

// Versions loads every registered package version.
func (s *Store) Versions(ctx context.Context) ([]*domain.PackageVersion, error) {
	return s.loadVersions(ctx, ``)
}

// VersionsByStatus loads every version currently in the given status.
func (s *Store) VersionsByStatus(ctx context.Context, status domain.Status) ([]*domain.PackageVersion, error) {
	return s.loadVersions(ctx, `WHERE v.status = ?`, status.String())
}

// SetStatus transitions a version, appending an audit row and updating any
// queue entry in the same transaction.
func (s *Store) SetStatus(ctx context.Context, name, version string, to domain.Status, note string) error {
	if !to.Valid() {
		return zerr.With(domain.ErrUnknownStatus, "status", to.String())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	versionID, current, err := versionForUpdate(ctx, tx, name, version)
	if err != nil {
		return err
	}
	if current == to {
		return tx.Commit()
	}
	if !current.CanTransition(to) {
		werr := zerr.With(domain.ErrInvalidTransition, "ref", domain.Ref(name, version))
		werr = zerr.With(werr, "from", current.String())
		return zerr.With(werr, "to", to.String())
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE package_versions SET status = ? WHERE id = ?`, to.String(), versionID); err != nil {
		return zerr.Wrap(err, "failed to update status")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE build_queue SET status = ? WHERE version_id = ?`, to.String(), versionID); err != nil {
		return zerr.Wrap(err, "failed to update queue entry status")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state_transitions (version_id, from_status, to_status, at, note)
		 VALUES (?, ?, ?, ?, ?)`,
		versionID, current.String(), to.String(), time.Now().UTC(), note); err != nil {
		return zerr.Wrap(err, "failed to append transition")
	}

	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, "failed to commit status change")
	}
	return nil
}

// Enqueue validates and persists a queue entry, transitioning the version to
// queued in the same transaction. Re-enqueueing an entry left over from an
// earlier attempt re-arms it in place.
func (s *Store) Enqueue(ctx context.Context, e *domain.BuildQueueEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	versionID, current, err := versionForUpdate(ctx, tx, e.Package, e.Version)
	if err != nil {
		return err
	}
	switch current {
	case domain.StatusQueued, domain.StatusActive, domain.StatusTesting:
		return zerr.With(domain.ErrAlreadyQueued, "ref", e.Ref())
	case domain.StatusPending:
	default:
		werr := zerr.With(domain.ErrInvalidTransition, "ref", e.Ref())
		werr = zerr.With(werr, "from", current.String())
		return zerr.With(werr, "to", domain.StatusQueued.String())
	}

	enqueuedAt := e.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO build_queue (version_id, priority, enqueued_at, status)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (version_id) DO UPDATE
		 SET priority = excluded.priority, enqueued_at = excluded.enqueued_at, status = excluded.status`,
		versionID, e.Priority, enqueuedAt, domain.StatusQueued.String()); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write queue entry"), "ref", e.Ref())
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE package_versions SET status = ? WHERE id = ?`,
		domain.StatusQueued.String(), versionID); err != nil {
		return zerr.Wrap(err, "failed to mark version queued")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state_transitions (version_id, from_status, to_status, at, note)
		 VALUES (?, ?, ?, ?, ?)`,
		versionID, current.String(), domain.StatusQueued.String(), time.Now().UTC(), "enqueued"); err != nil {
		return zerr.Wrap(err, "failed to append transition")
	}

	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, "failed to commit enqueue")
	}
	return nil
}

// Queue returns all queue entries, highest priority first, oldest first
// within a priority.
func (s *Store) Queue(ctx context.Context) ([]*domain.BuildQueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.name, v.version, q.priority, q.enqueued_at, q.status
		 FROM build_queue q
		 JOIN package_versions v ON v.id = q.version_id
		 JOIN packages p ON p.id = v.package_id
		 ORDER BY q.priority DESC, q.enqueued_at ASC`)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to query queue")
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var entries []*domain.BuildQueueEntry
	for rows.Next() {
		var e domain.BuildQueueEntry
		var status string
		if err := rows.Scan(&e.Package, &e.Version, &e.Priority, &e.EnqueuedAt, &status); err != nil {
			return nil, zerr.Wrap(err, "failed to scan queue entry")
		}
		st, err := domain.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		e.Status = st
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// RecordBuild appends the durable outcome of one build attempt.
func (s *Store) RecordBuild(ctx context.Context, r *domain.BuildRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	versionID, _, err := versionForUpdate(ctx, tx, r.Package, r.Version)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO build_records (version_id, started_at, finished_at, success, checkpoint_id, log_tail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		versionID, r.StartedAt, r.FinishedAt, r.Success, r.CheckpointID, r.LogTail); err != nil {
		return zerr.Wrap(err, "failed to insert build record")
	}

	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, "failed to commit build record")
	}
	return nil
}

// Transitions returns the status audit history of a version, oldest first.
func (s *Store) Transitions(ctx context.Context, name, version string) ([]domain.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.from_status, t.to_status, t.at, t.note
		 FROM state_transitions t
		 JOIN package_versions v ON v.id = t.version_id
		 JOIN packages p ON p.id = v.package_id
		 WHERE p.name = ? AND v.version = ?
		 ORDER BY t.id ASC`, name, version)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to query transitions")
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var out []domain.Transition
	for rows.Next() {
		var tr domain.Transition
		var from, to string
		if err := rows.Scan(&from, &to, &tr.At, &tr.Note); err != nil {
			return nil, zerr.Wrap(err, "failed to scan transition")
		}
		tr.Package, tr.Version = name, version
		if tr.From, err = domain.ParseStatus(from); err != nil {
			return nil, err
		}
		if tr.To, err = domain.ParseStatus(to); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// loadVersions loads versions (with their requirements) matching the given
// WHERE clause over aliases v (package_versions) and p (packages).
func (s *Store) loadVersions(ctx context.Context, where string, args ...any) ([]*domain.PackageVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.id, p.name, v.version, v.status, v.ram_mb, v.cpu_cores
		 FROM package_versions v
		 JOIN packages p ON p.id = v.package_id `+where+`
		 ORDER BY p.name, v.version`, args...)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to query versions")
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	byID := make(map[int64]*domain.PackageVersion)
	var ids []int64
	var out []*domain.PackageVersion
	for rows.Next() {
		var id int64
		var pv domain.PackageVersion
		var status string
		if err := rows.Scan(&id, &pv.Package, &pv.Version, &status, &pv.RAMMB, &pv.CPUCores); err != nil {
			return nil, zerr.Wrap(err, "failed to scan version")
		}
		if pv.Status, err = domain.ParseStatus(status); err != nil {
			return nil, err
		}
		byID[id] = &pv
		ids = append(ids, id)
		out = append(out, &pv)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to iterate versions")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := s.loadRequirements(ctx, byID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadRequirements(ctx context.Context, byID map[int64]*domain.PackageVersion) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.version_id, p.name, e.constraint_expr, e.kind
		 FROM dependency_edges e
		 JOIN packages p ON p.id = e.required_package_id
		 ORDER BY e.id ASC`)
	if err != nil {
		return zerr.Wrap(err, "failed to query dependency edges")
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	for rows.Next() {
		var versionID int64
		var req domain.BuildRequirement
		var constraintExpr, kind string
		if err := rows.Scan(&versionID, &req.Package, &constraintExpr, &kind); err != nil {
			return zerr.Wrap(err, "failed to scan dependency edge")
		}
		pv, ok := byID[versionID]
		if !ok {
			continue
		}
		// Stored constraints were validated at registration; a parse failure
		// here means the database was edited by hand.
		if req.Constraint, err = domain.ParseConstraint(constraintExpr); err != nil {
			return err
		}
		if req.Kind, err = domain.ParseDependencyKind(kind); err != nil {
			return err
		}
		pv.Requirements = append(pv.Requirements, req)
	}
	return rows.Err()
}

func upsertPackage(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO packages (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to upsert package"), "package", name)
	}
	var id int64
	row := tx.QueryRowContext(ctx, `SELECT id FROM packages WHERE name = ?`, name)
	if err := row.Scan(&id); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to read package id"), "package", name)
	}
	return id, nil
}

func versionForUpdate(ctx context.Context, tx *sql.Tx, name, version string) (int64, domain.Status, error) {
	var id int64
	var status string
	row := tx.QueryRowContext(ctx,
		`SELECT v.id, v.status
		 FROM package_versions v
		 JOIN packages p ON p.id = v.package_id
		 WHERE p.name = ? AND v.version = ?`, name, version)
	if err := row.Scan(&id, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", zerr.With(domain.ErrPackageNotRegistered, "ref", domain.Ref(name, version))
		}
		return 0, "", zerr.Wrap(err, "failed to load version")
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return 0, "", err
	}
	return id, st, nil
}
