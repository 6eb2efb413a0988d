package exporter

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekd/rules"
	"github.com/brensch/snekd/scraper/db"
	"github.com/brensch/snekd/scraper/downloader"
	"github.com/brensch/snekd/scraper/store"
)

func newTestExporter(t *testing.T) (*Exporter, *db.DB, *store.WrittenLog, string) {
	t.Helper()
	dir := t.TempDir()

	database, err := db.New(filepath.Join(dir, "games.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	written, err := store.OpenWrittenLog(filepath.Join(dir, "written.log"))
	require.NoError(t, err)
	t.Cleanup(func() { written.Close() })

	outDir := filepath.Join(dir, "out")
	return New(database, written, outDir), database, written, outDir
}

func frameJSON(t *testing.T, frame downloader.FrameData) string {
	t.Helper()
	b, err := json.Marshal(frame)
	require.NoError(t, err)
	return string(b)
}

// insertSampleGame stores a three frame game: snake a walks up then
// right, snake b walks down and dies against the wall on its second move.
func insertSampleGame(t *testing.T, database *db.DB, gameID string) {
	t.Helper()

	frames := []downloader.FrameData{
		{
			Turn: 0,
			Food: []downloader.Coord{{X: 3, Y: 3}},
			Board: downloader.BoardData{
				Width: 7, Height: 7,
				Hazards: []downloader.Coord{{X: 6, Y: 6}},
			},
			Snakes: []downloader.SnakeData{
				{ID: "b", Name: "beta", Health: 90, Body: []downloader.Coord{{X: 5, Y: 1}}},
				{ID: "a", Name: "alpha", Health: 100, Body: []downloader.Coord{{X: 1, Y: 1}}},
			},
		},
		{
			Turn: 1,
			Snakes: []downloader.SnakeData{
				{ID: "a", Name: "alpha", Health: 99, Body: []downloader.Coord{{X: 1, Y: 2}}},
				{ID: "b", Name: "beta", Health: 89, Body: []downloader.Coord{{X: 5, Y: 0}}},
			},
		},
		{
			Turn: 2,
			Snakes: []downloader.SnakeData{
				{ID: "a", Name: "alpha", Health: 98, Body: []downloader.Coord{{X: 2, Y: 2}}},
				{ID: "b", Name: "beta", Health: 0, Body: []downloader.Coord{{X: 5, Y: -1}},
					Death: &downloader.Death{Cause: "wall-collision", Turn: 2}},
			},
		},
	}

	dbFrames := make([]db.Frame, len(frames))
	for i, frame := range frames {
		dbFrames[i] = db.Frame{GameID: gameID, Turn: frame.Turn, RawJSON: frameJSON(t, frame)}
	}
	require.NoError(t, database.InsertGame(db.Game{ID: gameID, Winner: "alpha", Ruleset: "standard"}, dbFrames))
}

func TestExportBatchWritesTurnRows(t *testing.T) {
	exp, database, written, outDir := newTestExporter(t)
	insertSampleGame(t, database, "g-1")

	path, games, err := exp.ExportBatch(10)
	require.NoError(t, err)
	require.Equal(t, 1, games)
	require.Equal(t, outDir, filepath.Dir(path))

	rows, err := store.ReadParquet[store.TurnRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	require.Equal(t, "g-1", first.GameID)
	require.Equal(t, int32(0), first.Turn)
	require.Equal(t, int32(7), first.Width)
	require.Equal(t, int32(7), first.Height)
	require.Equal(t, SourceScraped, first.Source)
	require.Equal(t, []int32{3}, first.FoodX)
	require.Equal(t, []int32{6}, first.HazardX)

	// Snakes come out sorted by ID regardless of feed order.
	require.Len(t, first.Snakes, 2)
	require.Equal(t, "a", first.Snakes[0].ID)
	require.Equal(t, "b", first.Snakes[1].ID)
	require.Equal(t, int32(rules.MoveUp), first.Snakes[0].Move)
	require.Equal(t, int32(rules.MoveDown), first.Snakes[1].Move)

	second := rows[1]
	require.Equal(t, int32(rules.MoveRight), second.Snakes[0].Move)
	require.Equal(t, int32(rules.MoveDown), second.Snakes[1].Move)
	require.True(t, second.Snakes[1].Alive)

	last := rows[2]
	require.Equal(t, store.MoveUnknown, last.Snakes[0].Move)
	require.False(t, last.Snakes[1].Alive)

	// The game is now deduped on both layers.
	require.True(t, written.Has("g-1"))
	pending, err := database.UnexportedGames(10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestExportBatchNothingPending(t *testing.T) {
	exp, _, _, _ := newTestExporter(t)

	path, games, err := exp.ExportBatch(10)
	require.NoError(t, err)
	require.Empty(t, path)
	require.Zero(t, games)
}

func TestExportBatchSkipsGamesAlreadyInLog(t *testing.T) {
	exp, database, written, _ := newTestExporter(t)
	insertSampleGame(t, database, "g-1")
	require.NoError(t, written.Add("g-1"))

	path, games, err := exp.ExportBatch(10)
	require.NoError(t, err)
	require.Empty(t, path)
	require.Zero(t, games)

	// The index catches up with the log instead of re-exporting.
	pending, err := database.UnexportedGames(10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMoveBetween(t *testing.T) {
	cases := []struct {
		name string
		from downloader.Coord
		to   downloader.Coord
		want int32
	}{
		{"up", downloader.Coord{X: 4, Y: 4}, downloader.Coord{X: 4, Y: 5}, int32(rules.MoveUp)},
		{"down", downloader.Coord{X: 4, Y: 4}, downloader.Coord{X: 4, Y: 3}, int32(rules.MoveDown)},
		{"left", downloader.Coord{X: 4, Y: 4}, downloader.Coord{X: 3, Y: 4}, int32(rules.MoveLeft)},
		{"right", downloader.Coord{X: 4, Y: 4}, downloader.Coord{X: 5, Y: 4}, int32(rules.MoveRight)},
		{"teleport", downloader.Coord{X: 4, Y: 4}, downloader.Coord{X: 6, Y: 4}, store.MoveUnknown},
		{"diagonal", downloader.Coord{X: 4, Y: 4}, downloader.Coord{X: 5, Y: 5}, store.MoveUnknown},
		{"stationary", downloader.Coord{X: 4, Y: 4}, downloader.Coord{X: 4, Y: 4}, store.MoveUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, moveBetween(tc.from, tc.to))
		})
	}
}
