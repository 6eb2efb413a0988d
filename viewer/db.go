package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/brensch/snekd/scraper/store"
)

// DBCache holds an in-memory DuckDB whose views glob the parquet roots.
// The connection is rebuilt on an interval so freshly flushed batches
// show up without restarting the viewer.
type DBCache struct {
	roots       []string
	refreshRate time.Duration

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time
}

func NewDBCache(roots []string, refreshRate time.Duration) *DBCache {
	return &DBCache{roots: roots, refreshRate: refreshRate}
}

func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}
	return c.refreshLocked()
}

func (c *DBCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked()
	return err
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()

	db, err := openDuckDB(c.roots)
	if err != nil {
		return nil, err
	}

	if c.db != nil {
		_ = c.db.Close()
	}
	c.db = db
	c.lastRefresh = time.Now()

	slog.Debug("duckdb views rebuilt", "roots", len(c.roots), "elapsed", time.Since(start))
	return c.db, nil
}

func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// openDuckDB creates the decisions and turns views over every root. The
// batch writers name files schema_nano.parquet, so the schema prefix in
// the glob keeps the two views from reading each other's files. Files
// still staged under a tmp/ directory are excluded until their rename.
func openDuckDB(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	if err := createView(db, "decisions", store.SchemaDecision, roots, emptyDecisionsView); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createView(db, "turns", store.SchemaGameTurn, roots, emptyTurnsView); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func createView(db *sql.DB, view, schema string, roots []string, emptyStmt string) error {
	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" || !hasParquet(root, schema) {
			continue
		}
		glob := filepath.Join(root, "**", schema+"_*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}

	if len(globs) == 0 {
		if _, err := db.Exec(emptyStmt); err != nil {
			return fmt.Errorf("create empty %s view: %w", view, err)
		}
		return nil
	}

	stmt := `CREATE OR REPLACE VIEW ` + view + ` AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT contains(filename, '/tmp/')`
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("create %s view: %w", view, err)
	}
	return nil
}

const emptyDecisionsView = `CREATE OR REPLACE VIEW decisions AS
	SELECT * FROM (
		SELECT
			NULL::VARCHAR AS game_id,
			NULL::INTEGER AS turn,
			NULL::VARCHAR AS you_id,
			NULL::INTEGER AS width,
			NULL::INTEGER AS height,
			NULL::INTEGER AS health,
			NULL::INTEGER AS length,
			NULL::INTEGER AS move,
			NULL::BOOLEAN AS fallback,
			NULL::BIGINT AS elapsed_us,
			NULL::VARCHAR AS source,
			NULL::BLOB AS state,
			NULL::STRUCT(
				move INTEGER,
				head_x INTEGER,
				head_y INTEGER,
				legal BOOLEAN,
				eats BOOLEAN,
				space INTEGER,
				food_cost INTEGER,
				threat INTEGER,
				score DOUBLE
			)[] AS evals,
			NULL::VARCHAR AS filename
	) WHERE 1=0`

const emptyTurnsView = `CREATE OR REPLACE VIEW turns AS
	SELECT * FROM (
		SELECT
			NULL::VARCHAR AS game_id,
			NULL::INTEGER AS turn,
			NULL::INTEGER AS width,
			NULL::INTEGER AS height,
			NULL::INTEGER[] AS food_x,
			NULL::INTEGER[] AS food_y,
			NULL::INTEGER[] AS hazard_x,
			NULL::INTEGER[] AS hazard_y,
			NULL::STRUCT(
				id VARCHAR,
				name VARCHAR,
				alive BOOLEAN,
				health INTEGER,
				body_x INTEGER[],
				body_y INTEGER[],
				move INTEGER
			)[] AS snakes,
			NULL::VARCHAR AS source,
			NULL::VARCHAR AS filename
	) WHERE 1=0`

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var errFoundParquet = errors.New("found parquet")

// hasParquet reports whether root holds at least one finalized batch for
// schema. read_parquet errors out on a glob that matches nothing, so roots
// that have not flushed yet stay on the typed empty view instead.
func hasParquet(root, schema string) bool {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, schema+"_") && strings.HasSuffix(name, ".parquet") {
			return errFoundParquet
		}
		return nil
	})
	return errors.Is(err, errFoundParquet)
}

// startedNsExpr recovers the batch flush time from the filename.
const startedNsExpr = `MIN(try_cast(regexp_extract(filename, '([0-9]+)\.parquet$', 1) AS BIGINT))`

func queryDecisionGames(ctx context.Context, db *sql.DB) ([]GameSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			game_id,
			`+startedNsExpr+` AS started_ns,
			MIN(turn)::INTEGER AS first_turn,
			MAX(turn)::INTEGER AS last_turn,
			COUNT(*)::INTEGER AS row_count,
			MIN(width)::INTEGER AS width,
			MIN(height)::INTEGER AS height,
			MIN(source)::VARCHAR AS source,
			MIN(filename)::VARCHAR AS file,
			SUM(CASE WHEN fallback THEN 1 ELSE 0 END)::BIGINT AS fallbacks,
			AVG(elapsed_us)::DOUBLE AS avg_elapsed_us
		FROM decisions
		GROUP BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		g := GameSummary{Kind: "decision"}
		if err := rows.Scan(&g.GameID, &g.StartedNs, &g.FirstTurn, &g.LastTurn, &g.Rows,
			&g.Width, &g.Height, &g.Source, &g.SourceFile, &g.Fallbacks, &g.AvgElapsedUS); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func queryTurnGames(ctx context.Context, db *sql.DB) ([]GameSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			game_id,
			`+startedNsExpr+` AS started_ns,
			MIN(turn)::INTEGER AS first_turn,
			MAX(turn)::INTEGER AS last_turn,
			COUNT(*)::INTEGER AS row_count,
			MIN(width)::INTEGER AS width,
			MIN(height)::INTEGER AS height,
			MIN(source)::VARCHAR AS source,
			MIN(filename)::VARCHAR AS file,
			MAX(len(snakes))::INTEGER AS snake_count
		FROM turns
		GROUP BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		g := GameSummary{Kind: "turn"}
		if err := rows.Scan(&g.GameID, &g.StartedNs, &g.FirstTurn, &g.LastTurn, &g.Rows,
			&g.Width, &g.Height, &g.Source, &g.SourceFile, &g.Snakes); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// queryGames lists both archives newest first.
func queryGames(ctx context.Context, db *sql.DB, kind string, limit, offset int) ([]GameSummary, int64, error) {
	var games []GameSummary

	if kind == "" || kind == "decision" {
		decisions, err := queryDecisionGames(ctx, db)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, decisions...)
	}
	if kind == "" || kind == "turn" {
		turns, err := queryTurnGames(ctx, db)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, turns...)
	}

	sort.Slice(games, func(i, j int) bool {
		a, b := games[i].StartedNs, games[j].StartedNs
		if a == nil && b == nil {
			return games[i].GameID > games[j].GameID
		}
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		if *a != *b {
			return *a > *b
		}
		return games[i].GameID > games[j].GameID
	})

	total := int64(len(games))
	if offset >= len(games) {
		return []GameSummary{}, total, nil
	}
	end := offset + limit
	if end > len(games) {
		end = len(games)
	}
	return games[offset:end], total, nil
}

func scanDecision(scan func(dest ...any) error, includeState bool) (DecisionView, error) {
	var d DecisionView
	var stateAny, evalsAny any
	if err := scan(&d.GameID, &d.Turn, &d.YouID, &d.Width, &d.Height, &d.Health, &d.Length,
		&d.Move, &d.Fallback, &d.ElapsedUS, &d.Source, &stateAny, &evalsAny); err != nil {
		return DecisionView{}, err
	}
	d.MoveName = moveName(d.Move)
	d.Evals = asEvals(evalsAny)
	if includeState {
		if raw, err := store.DecodeStateJSON(asBytes(stateAny)); err == nil {
			d.State = &raw
		}
	}
	return d, nil
}

const decisionColumns = `game_id, turn::INTEGER, you_id, width::INTEGER, height::INTEGER,
	health::INTEGER, length::INTEGER, move::INTEGER, fallback, elapsed_us::BIGINT, source, state, evals`

func queryDecisions(ctx context.Context, db *sql.DB, gameID string, includeState bool) ([]DecisionView, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE game_id = ? ORDER BY turn ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionView
	for rows.Next() {
		d, err := scanDecision(rows.Scan, includeState)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func queryDecision(ctx context.Context, db *sql.DB, gameID string, turn int32) (DecisionView, bool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE game_id = ? AND turn = ? LIMIT 1`, gameID, turn)

	d, err := scanDecision(row.Scan, true)
	if err == sql.ErrNoRows {
		return DecisionView{}, false, nil
	}
	if err != nil {
		return DecisionView{}, false, err
	}
	return d, true, nil
}

func scanTurn(scan func(dest ...any) error) (TurnView, error) {
	var t TurnView
	var foodX, foodY, hazardX, hazardY, snakes any
	if err := scan(&t.GameID, &t.Turn, &t.Width, &t.Height,
		&foodX, &foodY, &hazardX, &hazardY, &snakes, &t.Source); err != nil {
		return TurnView{}, err
	}
	t.Food = zipPoints(asInt32Slice(foodX), asInt32Slice(foodY))
	t.Hazards = zipPoints(asInt32Slice(hazardX), asInt32Slice(hazardY))
	t.Snakes = asTurnSnakes(snakes)
	return t, nil
}

const turnColumns = `game_id, turn::INTEGER, width::INTEGER, height::INTEGER,
	food_x, food_y, hazard_x, hazard_y, snakes, source`

func queryTurns(ctx context.Context, db *sql.DB, gameID string) ([]TurnView, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE game_id = ? ORDER BY turn ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TurnView
	for rows.Next() {
		t, err := scanTurn(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func queryTurn(ctx context.Context, db *sql.DB, gameID string, turn int32) (TurnView, bool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE game_id = ? AND turn = ? LIMIT 1`, gameID, turn)

	t, err := scanTurn(row.Scan)
	if err == sql.ErrNoRows {
		return TurnView{}, false, nil
	}
	if err != nil {
		return TurnView{}, false, err
	}
	return t, true, nil
}

func queryDecisionStats(ctx context.Context, db *sql.DB) ([]SourceStats, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			source,
			COUNT(DISTINCT game_id)::BIGINT AS games,
			COUNT(*)::BIGINT AS decisions,
			SUM(CASE WHEN fallback THEN 1 ELSE 0 END)::BIGINT AS fallbacks,
			COALESCE(AVG(elapsed_us), 0)::DOUBLE AS avg_elapsed_us,
			SUM(CASE WHEN move = 0 THEN 1 ELSE 0 END)::BIGINT AS moves_up,
			SUM(CASE WHEN move = 1 THEN 1 ELSE 0 END)::BIGINT AS moves_down,
			SUM(CASE WHEN move = 2 THEN 1 ELSE 0 END)::BIGINT AS moves_left,
			SUM(CASE WHEN move = 3 THEN 1 ELSE 0 END)::BIGINT AS moves_right
		FROM decisions
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceStats
	for rows.Next() {
		var s SourceStats
		if err := rows.Scan(&s.Source, &s.Games, &s.Decisions, &s.Fallbacks, &s.AvgElapsedUS,
			&s.MovesUp, &s.MovesDown, &s.MovesLeft, &s.MovesRight); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryTurnStats(ctx context.Context, db *sql.DB) ([]TurnSourceStats, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			source,
			COUNT(DISTINCT game_id)::BIGINT AS games,
			COUNT(*)::BIGINT AS turns
		FROM turns
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TurnSourceStats
	for rows.Next() {
		var s TurnSourceStats
		if err := rows.Scan(&s.Source, &s.Games, &s.Turns); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
