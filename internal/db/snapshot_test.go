package db

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/flowbench-sim/flowbench/internal/flow"
)

func TestFieldSerializationRoundTrip(t *testing.T) {
	g, err := flow.NewGrid(12, 9)
	require.NoError(t, err)
	for i := range g.U {
		g.U[i] = float64(i) * 0.25
		g.V[i] = -float64(i) * 0.125
	}

	blob, err := serializeField(g)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	u, v, err := deserializeField(blob)
	require.NoError(t, err)
	if diff := cmp.Diff(g.U, u); diff != "" {
		t.Errorf("U mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(g.V, v); diff != "" {
		t.Errorf("V mismatch (-want +got):\n%s", diff)
	}
}

func TestDeserializeFieldRejectsBadBlobs(t *testing.T) {
	_, _, err := deserializeField(nil)
	require.Error(t, err)

	_, _, err = deserializeField([]byte("not gzip data"))
	require.Error(t, err)
}

func TestSaveAndLoadFieldSnapshot(t *testing.T) {
	db := openTestDB(t)
	insertTestRun(t, db, "run-snap")

	g, err := flow.NewGrid(16, 16)
	require.NoError(t, err)
	g.U[g.Idx(5, 5)] = 1.5
	g.V[g.Idx(6, 7)] = -0.75

	id, err := db.SaveFieldSnapshot("run-snap", g)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	loaded, err := db.LoadLatestFieldSnapshot("run-snap")
	require.NoError(t, err)
	require.Equal(t, 16, loaded.Width)
	require.Equal(t, 16, loaded.Height)
	if diff := cmp.Diff(g.U, loaded.U); diff != "" {
		t.Errorf("U mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(g.V, loaded.V); diff != "" {
		t.Errorf("V mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLatestFieldSnapshotPicksNewest(t *testing.T) {
	db := openTestDB(t)
	insertTestRun(t, db, "run-multi")

	first, err := flow.NewGrid(8, 8)
	require.NoError(t, err)
	first.U[first.Idx(2, 2)] = 1

	second, err := flow.NewGrid(8, 8)
	require.NoError(t, err)
	second.U[second.Idx(2, 2)] = 2

	_, err = db.SaveFieldSnapshot("run-multi", first)
	require.NoError(t, err)
	_, err = db.SaveFieldSnapshot("run-multi", second)
	require.NoError(t, err)

	loaded, err := db.LoadLatestFieldSnapshot("run-multi")
	require.NoError(t, err)
	require.Equal(t, 2.0, loaded.U[loaded.Idx(2, 2)])
}

func TestLoadLatestFieldSnapshotNoRows(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadLatestFieldSnapshot("never-ran")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}
