package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

func sampleDecisionRow(turn int32) DecisionRow {
	state, _ := EncodeStateJSON(RawState{
		Width:  11,
		Height: 11,
		Turn:   turn,
		YouID:  "me",
		Food:   []RawPoint{{X: 5, Y: 5}},
		Snakes: []RawSnake{{ID: "me", Health: 90, Body: []RawPoint{{X: 1, Y: 1}}}},
	})
	return DecisionRow{
		GameID:    "game-1",
		Turn:      turn,
		YouID:     "me",
		Width:     11,
		Height:    11,
		Health:    90,
		Length:    1,
		Move:      0,
		ElapsedUS: 1234,
		Source:    "live",
		State:     state,
		Evals: []DirectionEval{
			{Move: 0, HeadX: 1, HeadY: 2, Legal: true, Space: 121, FoodCost: 7, Score: 121},
			{Move: 1, HeadX: 1, HeadY: 0, Legal: true, Space: 121, FoodCost: 9, Score: 121},
			{Move: 2, HeadX: 0, HeadY: 1, Legal: true, Space: 121, FoodCost: 9, Score: 121},
			{Move: 3, HeadX: 2, HeadY: 1, Legal: true, Space: 121, FoodCost: 7, Score: 121},
		},
	}
}

func TestBatchWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := NewBatchWriter[DecisionRow](dir, SchemaDecision, parquet.SkipPageBounds("state"))
	require.NoError(t, err)

	want := []DecisionRow{sampleDecisionRow(1), sampleDecisionRow(2)}
	require.NoError(t, w.WriteRows(want))
	w.NoteGameWritten()

	path, rows, games, err := w.Finalize()
	require.NoError(t, err)
	require.Equal(t, 2, rows)
	require.Equal(t, 1, games)
	require.Equal(t, dir, filepath.Dir(path), "finalized file lands in outDir, not tmp")
	require.True(t, strings.HasPrefix(filepath.Base(path), SchemaDecision))

	got, err := ReadParquet[DecisionRow](path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestBatchWriterEmptyFinalizeLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	w, err := NewBatchWriter[TurnRow](dir, SchemaGameTurn)
	require.NoError(t, err)

	path, rows, games, err := w.Finalize()
	require.NoError(t, err)
	require.Empty(t, path)
	require.Zero(t, rows)
	require.Zero(t, games)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		require.True(t, entry.IsDir(), "no parquet file should be published: %s", entry.Name())
	}
}

func TestBatchWriterDoubleFinalize(t *testing.T) {
	w, err := NewBatchWriter[TurnRow](t.TempDir(), SchemaGameTurn)
	require.NoError(t, err)
	require.NoError(t, w.WriteRows([]TurnRow{{GameID: "g", Turn: 0, Width: 11, Height: 11}}))

	_, _, _, err = w.Finalize()
	require.NoError(t, err)

	path, rows, _, err := w.Finalize()
	require.NoError(t, err)
	require.Empty(t, path)
	require.Zero(t, rows)

	require.Error(t, w.WriteRows([]TurnRow{{GameID: "g2"}}), "writes after Finalize must fail")
}

func TestWriteParquetAtomic(t *testing.T) {
	dir := t.TempDir()
	want := []TurnRow{
		{
			GameID: "g1", Turn: 0, Width: 11, Height: 11,
			FoodX: []int32{5}, FoodY: []int32{5},
			Snakes: []TurnSnake{
				{ID: "a", Alive: true, Health: 100, BodyX: []int32{1, 1, 1}, BodyY: []int32{3, 2, 1}, Move: 0},
				{ID: "b", Alive: true, Health: 100, BodyX: []int32{9}, BodyY: []int32{9}, Move: MoveUnknown},
			},
		},
	}

	path, err := WriteParquetAtomic(dir, SchemaGameTurn, want)
	require.NoError(t, err)

	got, err := ReadParquet[TurnRow](path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWrittenLogDedupesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "written.log")

	l, err := OpenWrittenLog(path)
	require.NoError(t, err)

	require.NoError(t, l.Add("g1"))
	require.NoError(t, l.Add("g1"))
	require.NoError(t, l.AddMany([]string{"g2", "", "g1", "g3"}))

	require.True(t, l.Has("g1"))
	require.True(t, l.Has("g3"))
	require.False(t, l.Has("g4"))
	require.Equal(t, 3, l.Count())
	require.NoError(t, l.Close())

	reopened, err := OpenWrittenLog(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 3, reopened.Count())
	require.True(t, reopened.Has("g2"))
}

func TestStateJSONRoundTrip(t *testing.T) {
	want := RawState{
		Width:   11,
		Height:  11,
		Turn:    7,
		YouID:   "me",
		Food:    []RawPoint{{X: 0, Y: 0}},
		Hazards: []RawPoint{{X: 10, Y: 10}},
		Snakes:  []RawSnake{{ID: "me", Health: 42, Body: []RawPoint{{X: 3, Y: 3}, {X: 3, Y: 2}}}},
	}

	b, err := EncodeStateJSON(want)
	require.NoError(t, err)

	got, err := DecodeStateJSON(b)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = EncodeStateJSON(RawState{Width: 0, Height: 11})
	require.Error(t, err)

	_, err = DecodeStateJSON([]byte(`{"width":-1,"height":5}`))
	require.Error(t, err)
}
