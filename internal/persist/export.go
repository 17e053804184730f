package persist

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/jward/strata/internal/store"
)

// exportLine is one JSON line of an export. Exactly one of the pointer
// fields is set.
type exportLine struct {
	Meta   *exportMeta   `json:"meta,omitempty"`
	Entity *exportEntity `json:"entity,omitempty"`
	Edge   *exportEdge   `json:"edge,omitempty"`
}

type exportMeta struct {
	State string `json:"state"`
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`
}

type exportEntity struct {
	UID           string          `json:"uid"`
	Name          string          `json:"name"`
	QualifiedName string          `json:"qualified_name"`
	Parent        string          `json:"parent,omitempty"`
	Manual        bool            `json:"manual,omitempty"`
	Units         []string        `json:"units,omitempty"`
	Details       json.RawMessage `json:"details"`
}

type exportEdge struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Kind  string   `json:"kind"`
	Units []string `json:"units,omitempty"`
}

// Export writes s as zstd-compressed JSON lines: a meta line, then every
// entity, then every edge.
func Export(w io.Writer, s *store.Store, meta Meta) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(zw)
	enc := json.NewEncoder(bw)

	if err := enc.Encode(exportLine{Meta: &exportMeta{State: meta.State, RunID: meta.RunID, Mode: meta.Mode}}); err != nil {
		zw.Close()
		return fmt.Errorf("encode meta: %w", err)
	}
	err = s.ForEachEntity(func(r store.EntityRecord) error {
		details, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("encode details of %s: %w", r.UID, err)
		}
		var parent string
		if !r.Parent.IsZero() {
			parent = r.Parent.String()
		}
		return enc.Encode(exportLine{Entity: &exportEntity{
			UID:           r.UID.String(),
			Name:          r.Name,
			QualifiedName: r.QualifiedName,
			Parent:        parent,
			Manual:        r.Manual,
			Units:         r.Units,
			Details:       details,
		}})
	})
	if err == nil {
		err = s.ForEachEdge(func(r store.EdgeRecord) error {
			return enc.Encode(exportLine{Edge: &exportEdge{
				From:  r.Key.From.String(),
				To:    r.Key.To.String(),
				Kind:  r.Key.Kind.String(),
				Units: r.Units,
			}})
		})
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := zw.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close zstd writer: %w", cerr)
	}
	return err
}

// Import reads an Export stream into a new Store.
func Import(r io.Reader) (*store.Store, Meta, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	var (
		meta     Meta
		entities []store.EntityRecord
		edges    []store.EdgeRecord
	)
	dec := json.NewDecoder(zr)
	for {
		var line exportLine
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, Meta{}, fmt.Errorf("decode export: %w", err)
		}
		switch {
		case line.Meta != nil:
			meta.State = line.Meta.State
			meta.RunID = line.Meta.RunID
			meta.Mode = line.Meta.Mode
		case line.Entity != nil:
			rec, err := line.Entity.record()
			if err != nil {
				return nil, Meta{}, err
			}
			entities = append(entities, rec)
		case line.Edge != nil:
			rec, err := line.Edge.record()
			if err != nil {
				return nil, Meta{}, err
			}
			edges = append(edges, rec)
		}
	}

	s := store.New()
	if err := s.PopulateFromSnapshot(entities, edges); err != nil {
		return nil, Meta{}, fmt.Errorf("import snapshot: %w", err)
	}
	return s, meta, nil
}

func (e *exportEntity) record() (store.EntityRecord, error) {
	uid, err := store.ParseUniqueID(e.UID)
	if err != nil {
		return store.EntityRecord{}, err
	}
	parent, err := store.ParseUniqueID(e.Parent)
	if err != nil {
		return store.EntityRecord{}, err
	}
	det, err := DecodeDetails(uid.Kind, e.Details)
	if err != nil {
		return store.EntityRecord{}, fmt.Errorf("decode details of %s: %w", e.UID, err)
	}
	return store.EntityRecord{
		UID:           uid,
		Name:          e.Name,
		QualifiedName: e.QualifiedName,
		Parent:        parent,
		Units:         e.Units,
		Manual:        e.Manual,
		Details:       det,
	}, nil
}

func (e *exportEdge) record() (store.EdgeRecord, error) {
	from, err := store.ParseUniqueID(e.From)
	if err != nil {
		return store.EdgeRecord{}, err
	}
	to, err := store.ParseUniqueID(e.To)
	if err != nil {
		return store.EdgeRecord{}, err
	}
	kind, err := store.ParseEdgeKind(e.Kind)
	if err != nil {
		return store.EdgeRecord{}, err
	}
	return store.EdgeRecord{Key: store.EdgeKey{From: from, To: to, Kind: kind}, Units: e.Units}, nil
}
