// Package persist stores Entity Graph snapshots and run metadata in SQLite.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/strata/internal/store"
)

// DB is the SQLite snapshot database.
type DB struct {
	db *sql.DB
}

// Open opens a SQLite database at dbPath with WAL mode enabled.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (d *DB) Migrate() error {
	if _, err := d.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS entities (
  uid             TEXT PRIMARY KEY,
  kind            TEXT NOT NULL,
  name            TEXT NOT NULL,
  qualified_name  TEXT NOT NULL,
  parent_uid      TEXT,
  manual          BOOLEAN NOT NULL DEFAULT FALSE,
  details         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_units (
  entity_uid      TEXT NOT NULL REFERENCES entities(uid) ON DELETE CASCADE,
  unit            TEXT NOT NULL,
  PRIMARY KEY (entity_uid, unit)
);

CREATE TABLE IF NOT EXISTS edges (
  id              INTEGER PRIMARY KEY,
  from_uid        TEXT NOT NULL REFERENCES entities(uid) ON DELETE CASCADE,
  to_uid          TEXT NOT NULL REFERENCES entities(uid) ON DELETE CASCADE,
  kind            TEXT NOT NULL,
  UNIQUE (from_uid, to_uid, kind)
);

CREATE TABLE IF NOT EXISTS edge_units (
  edge_id         INTEGER NOT NULL REFERENCES edges(id) ON DELETE CASCADE,
  unit            TEXT NOT NULL,
  PRIMARY KEY (edge_id, unit)
);

CREATE TABLE IF NOT EXISTS units (
  path            TEXT PRIMARY KEY,
  fingerprint     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_qualified_name ON entities(qualified_name);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_uid);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_uid);
CREATE INDEX IF NOT EXISTS idx_entity_units_unit ON entity_units(unit);
`

// Meta is the run metadata saved with a snapshot.
type Meta struct {
	// State is the model state name, e.g. "all_ready".
	State string
	// RunID identifies the run that produced the snapshot.
	RunID   string
	Mode    string
	SavedAt time.Time
	// Fingerprints maps unit paths to their content hash.
	Fingerprints map[string]string
}

// Save replaces the stored snapshot with the contents of s and meta, in a
// single transaction.
func (d *DB) Save(ctx context.Context, s *store.Store, meta Meta) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM edge_units",
		"DELETE FROM edges",
		"DELETE FROM entity_units",
		"DELETE FROM entities",
		"DELETE FROM units",
		"DELETE FROM metadata",
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	entStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entities (uid, kind, name, qualified_name, parent_uid, manual, details) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare entity insert: %w", err)
	}
	defer entStmt.Close()
	entUnitStmt, err := tx.PrepareContext(ctx, "INSERT INTO entity_units (entity_uid, unit) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare entity unit insert: %w", err)
	}
	defer entUnitStmt.Close()

	err = s.ForEachEntity(func(r store.EntityRecord) error {
		details, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("encode details of %s: %w", r.UID, err)
		}
		var parent sql.NullString
		if !r.Parent.IsZero() {
			parent = sql.NullString{String: r.Parent.String(), Valid: true}
		}
		uid := r.UID.String()
		if _, err := entStmt.ExecContext(ctx, uid, r.UID.Kind.String(), r.Name, r.QualifiedName, parent, r.Manual, string(details)); err != nil {
			return fmt.Errorf("insert entity %s: %w", uid, err)
		}
		for _, u := range r.Units {
			if _, err := entUnitStmt.ExecContext(ctx, uid, u); err != nil {
				return fmt.Errorf("insert entity unit %s: %w", uid, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	edgeStmt, err := tx.PrepareContext(ctx, "INSERT INTO edges (from_uid, to_uid, kind) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	edgeUnitStmt, err := tx.PrepareContext(ctx, "INSERT INTO edge_units (edge_id, unit) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare edge unit insert: %w", err)
	}
	defer edgeUnitStmt.Close()

	err = s.ForEachEdge(func(r store.EdgeRecord) error {
		res, err := edgeStmt.ExecContext(ctx, r.Key.From.String(), r.Key.To.String(), r.Key.Kind.String())
		if err != nil {
			return fmt.Errorf("insert edge %s: %w", r.Key, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("edge id: %w", err)
		}
		for _, u := range r.Units {
			if _, err := edgeUnitStmt.ExecContext(ctx, id, u); err != nil {
				return fmt.Errorf("insert edge unit %s: %w", r.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for path, fp := range meta.Fingerprints {
		if _, err := tx.ExecContext(ctx, "INSERT INTO units (path, fingerprint) VALUES (?, ?)", path, fp); err != nil {
			return fmt.Errorf("insert unit %s: %w", path, err)
		}
	}
	savedAt := meta.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	for k, v := range map[string]string{
		"state":    meta.State,
		"run_id":   meta.RunID,
		"mode":     meta.Mode,
		"saved_at": savedAt.UTC().Format(time.RFC3339Nano),
	} {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metadata (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("insert metadata %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot into a new Store. An empty database
// yields an empty Store and zero Meta.
func (d *DB) Load(ctx context.Context) (*store.Store, Meta, error) {
	entities, err := d.loadEntities(ctx)
	if err != nil {
		return nil, Meta{}, err
	}
	edges, err := d.loadEdges(ctx)
	if err != nil {
		return nil, Meta{}, err
	}
	meta, err := d.loadMeta(ctx)
	if err != nil {
		return nil, Meta{}, err
	}

	s := store.New()
	if err := s.PopulateFromSnapshot(entities, edges); err != nil {
		return nil, Meta{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s, meta, nil
}

func (d *DB) loadEntities(ctx context.Context) ([]store.EntityRecord, error) {
	units, err := d.unitsByKey(ctx, "SELECT entity_uid, unit FROM entity_units ORDER BY entity_uid, unit")
	if err != nil {
		return nil, fmt.Errorf("query entity units: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT uid, name, qualified_name, parent_uid, manual, details FROM entities")
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []store.EntityRecord
	for rows.Next() {
		var (
			uidStr, name, qn, details string
			parentStr                 sql.NullString
			manual                    bool
		)
		if err := rows.Scan(&uidStr, &name, &qn, &parentStr, &manual, &details); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		uid, err := store.ParseUniqueID(uidStr)
		if err != nil {
			return nil, err
		}
		parent, err := store.ParseUniqueID(parentStr.String)
		if err != nil {
			return nil, err
		}
		det, err := DecodeDetails(uid.Kind, []byte(details))
		if err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", uidStr, err)
		}
		out = append(out, store.EntityRecord{
			UID:           uid,
			Name:          name,
			QualifiedName: qn,
			Parent:        parent,
			Units:         units[uidStr],
			Manual:        manual,
			Details:       det,
		})
	}
	return out, rows.Err()
}

func (d *DB) loadEdges(ctx context.Context) ([]store.EdgeRecord, error) {
	units, err := d.unitsByKey(ctx, "SELECT CAST(edge_id AS TEXT), unit FROM edge_units ORDER BY edge_id, unit")
	if err != nil {
		return nil, fmt.Errorf("query edge units: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, "SELECT CAST(id AS TEXT), from_uid, to_uid, kind FROM edges ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []store.EdgeRecord
	for rows.Next() {
		var id, fromStr, toStr, kindStr string
		if err := rows.Scan(&id, &fromStr, &toStr, &kindStr); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		from, err := store.ParseUniqueID(fromStr)
		if err != nil {
			return nil, err
		}
		to, err := store.ParseUniqueID(toStr)
		if err != nil {
			return nil, err
		}
		kind, err := store.ParseEdgeKind(kindStr)
		if err != nil {
			return nil, err
		}
		out = append(out, store.EdgeRecord{
			Key:   store.EdgeKey{From: from, To: to, Kind: kind},
			Units: units[id],
		})
	}
	return out, rows.Err()
}

func (d *DB) unitsByKey(ctx context.Context, query string) (map[string][]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var key, unit string
		if err := rows.Scan(&key, &unit); err != nil {
			return nil, err
		}
		out[key] = append(out[key], unit)
	}
	return out, rows.Err()
}

func (d *DB) loadMeta(ctx context.Context) (Meta, error) {
	var meta Meta
	rows, err := d.db.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return meta, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return meta, fmt.Errorf("scan metadata: %w", err)
		}
		switch k {
		case "state":
			meta.State = v
		case "run_id":
			meta.RunID = v
		case "mode":
			meta.Mode = v
		case "saved_at":
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				meta.SavedAt = t
			}
		}
	}
	if err := rows.Err(); err != nil {
		return meta, err
	}

	rows, err = d.db.QueryContext(ctx, "SELECT path, fingerprint FROM units")
	if err != nil {
		return meta, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var path, fp string
		if err := rows.Scan(&path, &fp); err != nil {
			return meta, fmt.Errorf("scan unit: %w", err)
		}
		if meta.Fingerprints == nil {
			meta.Fingerprints = make(map[string]string)
		}
		meta.Fingerprints[path] = fp
	}
	return meta, rows.Err()
}

// DecodeDetails parses the JSON form of a Details payload of kind k.
func DecodeDetails(k store.Kind, data []byte) (store.Details, error) {
	switch k {
	case store.KindFile:
		return decode[store.FileDetails](data)
	case store.KindPackage:
		return decode[store.PackageDetails](data)
	case store.KindComponent:
		return decode[store.ComponentDetails](data)
	case store.KindNamespace:
		return decode[store.NamespaceDetails](data)
	case store.KindType:
		return decode[store.TypeDetails](data)
	case store.KindMethod:
		return decode[store.MethodDetails](data)
	case store.KindFunction:
		return decode[store.FunctionDetails](data)
	case store.KindField:
		return decode[store.FieldDetails](data)
	case store.KindVariable:
		return decode[store.VariableDetails](data)
	case store.KindDiagnostic:
		return decode[store.DiagnosticDetails](data)
	}
	return nil, fmt.Errorf("unknown entity kind %s", k)
}

func decode[T store.Details](data []byte) (store.Details, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}
