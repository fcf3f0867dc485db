package db

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/flowbench-sim/flowbench/internal/flow"
)

// FieldSnapshot is one persisted velocity field, compressed for storage.
type FieldSnapshot struct {
	SnapshotID     *int64 `json:"snapshot_id,omitempty"`
	RunID          string `json:"run_id"`
	TakenUnixNanos int64  `json:"taken_unix_nanos"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	FieldBlob      []byte `json:"-"`
}

// fieldPayload is the gob-encoded form inside FieldBlob.
type fieldPayload struct {
	U []float64
	V []float64
}

// serializeField compresses the velocity components with gob + gzip.
func serializeField(g *flow.Grid) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(fieldPayload{U: g.U, V: g.V}); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeField decodes a gob+gzip velocity blob.
func deserializeField(blob []byte) (u, v []float64, err error) {
	if len(blob) == 0 {
		return nil, nil, fmt.Errorf("empty field blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var payload fieldPayload
	if err := gob.NewDecoder(gz).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("failed to decode field blob: %w", err)
	}
	return payload.U, payload.V, nil
}

// SaveFieldSnapshot persists the velocity field of g for a run and
// returns the new snapshot id.
func (db *DB) SaveFieldSnapshot(runID string, g *flow.Grid) (int64, error) {
	blob, err := serializeField(g)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize field: %w", err)
	}

	res, err := db.Exec(`
		INSERT INTO field_snapshots (run_id, taken_unix_nanos, width, height, field_blob)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().UnixNano(), g.Width, g.Height, blob)
	if err != nil {
		return 0, fmt.Errorf("failed to insert field snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LoadLatestFieldSnapshot restores the most recent velocity field saved
// for a run as a fresh obstacle-free grid.
func (db *DB) LoadLatestFieldSnapshot(runID string) (*flow.Grid, error) {
	row := db.QueryRow(`
		SELECT width, height, field_blob FROM field_snapshots
		WHERE run_id = ? ORDER BY taken_unix_nanos DESC LIMIT 1`, runID)

	var width, height int
	var blob []byte
	if err := row.Scan(&width, &height, &blob); err != nil {
		return nil, err
	}

	u, v, err := deserializeField(blob)
	if err != nil {
		return nil, err
	}
	g, err := flow.NewGrid(width, height)
	if err != nil {
		return nil, fmt.Errorf("snapshot has invalid dimensions %dx%d: %w", width, height, err)
	}
	if len(u) != width*height || len(v) != width*height {
		return nil, fmt.Errorf("snapshot blob length mismatch: got %d/%d cells, want %d", len(u), len(v), width*height)
	}
	copy(g.U, u)
	copy(g.V, v)
	return g, nil
}
