// Package db keeps the scraper's index of downloaded games in SQLite.
// The raw frame JSON lives here until the exporter rewrites it into
// parquet; the games table doubles as the dedupe set across runs.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite handle behind a mutex. SQLite allows one writer,
// so the connection pool is pinned to a single connection and callers
// serialize through the lock.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Game is one row of the games index.
type Game struct {
	ID        string
	Winner    string
	Ruleset   string
	Turns     int
	CrawledAt time.Time
	Exported  bool
}

// Frame holds the raw engine JSON for one turn of a game.
type Frame struct {
	GameID  string
	Turn    int
	RawJSON string
}

func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		winner TEXT,
		ruleset TEXT,
		turns INTEGER DEFAULT 0,
		crawled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		exported BOOLEAN DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS frames (
		game_id TEXT,
		turn INTEGER,
		raw_json TEXT,
		PRIMARY KEY (game_id, turn),
		FOREIGN KEY(game_id) REFERENCES games(id)
	);

	CREATE INDEX IF NOT EXISTS idx_games_exported ON games(exported);
	CREATE INDEX IF NOT EXISTS idx_frames_game_id ON frames(game_id);
	`

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// GameExists reports whether a game has already been downloaded.
func (db *DB) GameExists(gameID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var one int
	err := db.conn.QueryRow("SELECT 1 FROM games WHERE id = ?", gameID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertGame stores a game and all its frames in a single transaction.
func (db *DB) InsertGame(game Game, frames []Frame) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT OR IGNORE INTO games (id, winner, ruleset, turns) VALUES (?, ?, ?, ?)",
		game.ID, game.Winner, game.Ruleset, len(frames),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO frames (game_id, turn, raw_json) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, frame := range frames {
		if _, err := stmt.Exec(frame.GameID, frame.Turn, frame.RawJSON); err != nil {
			return fmt.Errorf("insert frame %d: %w", frame.Turn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UnexportedGames returns games that have not been written to parquet yet.
func (db *DB) UnexportedGames(limit int) ([]Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT id, winner, ruleset, turns, crawled_at, exported FROM games WHERE exported = 0 ORDER BY crawled_at LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Winner, &g.Ruleset, &g.Turns, &g.CrawledAt, &g.Exported); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GameFrames returns all frames for a game in turn order.
func (db *DB) GameFrames(gameID string) ([]Frame, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT game_id, turn, raw_json FROM frames WHERE game_id = ? ORDER BY turn",
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.GameID, &f.Turn, &f.RawJSON); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// MarkExported flags a game as written to parquet.
func (db *DB) MarkExported(gameID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec("UPDATE games SET exported = 1 WHERE id = ?", gameID)
	return err
}

// AllGameIDs returns every game ID in the index, used to seed the
// discovery dedupe set on startup.
func (db *DB) AllGameIDs() (map[string]bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query("SELECT id FROM games")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Stats returns row counts for progress logging.
func (db *DB) Stats() (totalGames, exportedGames, totalFrames int64, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err = db.conn.QueryRow("SELECT COUNT(*) FROM games").Scan(&totalGames); err != nil {
		return
	}
	if err = db.conn.QueryRow("SELECT COUNT(*) FROM games WHERE exported = 1").Scan(&exportedGames); err != nil {
		return
	}
	err = db.conn.QueryRow("SELECT COUNT(*) FROM frames").Scan(&totalFrames)
	return
}

func (db *DB) Close() error {
	return db.conn.Close()
}
