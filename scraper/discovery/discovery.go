// Package discovery finds fresh game IDs by crawling the public
// leaderboard pages and each ranked player's recent games.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "snekd-scraper/1.0 (archive-collector)"

type Config struct {
	BaseURL         string // host player links are resolved against
	LeaderboardURLs []string
	RequestDelay    time.Duration // between player page fetches
	MaxPlayers      int           // per leaderboard, 0 means unlimited
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "https://play.battlesnake.com",
		LeaderboardURLs: []string{
			"https://play.battlesnake.com/leaderboard/standard",
			"https://play.battlesnake.com/leaderboard/standard-duels",
		},
		RequestDelay: 500 * time.Millisecond,
		MaxPlayers:   100,
	}
}

// Worker crawls leaderboards and emits game IDs it has not seen before.
type Worker struct {
	config   Config
	client   *http.Client
	knownIDs map[string]bool
	knownMu  sync.Mutex
	gameIDRe *regexp.Regexp
	playerRe *regexp.Regexp
	arenaRe  *regexp.Regexp
}

// NewWorker seeds the dedupe set with existingIDs, usually the SQLite
// index snapshot, so already-stored games never reach the channel.
func NewWorker(config Config, existingIDs map[string]bool) *Worker {
	if existingIDs == nil {
		existingIDs = make(map[string]bool)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	return &Worker{
		config:   config,
		client:   &http.Client{Timeout: 30 * time.Second},
		knownIDs: existingIDs,
		gameIDRe: regexp.MustCompile(`/game/([a-f0-9-]+)`),
		playerRe: regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`),
		arenaRe:  regexp.MustCompile(`/leaderboard/([^/]+)/?$`),
	}
}

// Discover crawls every configured leaderboard once and sends unseen
// game IDs to the channel. It returns early when the context ends.
func (w *Worker) Discover(ctx context.Context, gameIDs chan<- string) error {
	totalNew := 0

	for _, leaderboardURL := range w.config.LeaderboardURLs {
		players, arena, err := w.leaderboardPlayers(ctx, leaderboardURL)
		if err != nil {
			slog.Warn("leaderboard fetch failed", "url", leaderboardURL, "err", err)
			continue
		}
		slog.Info("leaderboard crawled", "arena", arena, "players", len(players))

		if w.config.MaxPlayers > 0 && len(players) > w.config.MaxPlayers {
			players = players[:w.config.MaxPlayers]
		}

		arenaNew := 0
		for _, player := range players {
			if err := ctx.Err(); err != nil {
				return err
			}

			ids, err := w.playerGames(ctx, player.statsURL)
			if err != nil {
				slog.Debug("player page fetch failed", "player", player.username, "err", err)
				continue
			}

			for _, gameID := range ids {
				if w.markKnown(gameID) {
					continue
				}
				select {
				case gameIDs <- gameID:
					arenaNew++
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			select {
			case <-time.After(w.config.RequestDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		slog.Info("arena crawl complete", "arena", arena, "new_games", arenaNew)
		totalNew += arenaNew
	}

	slog.Info("discovery complete", "new_games", totalNew)
	return nil
}

// markKnown records the ID and reports whether it was already present.
func (w *Worker) markKnown(gameID string) bool {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	if w.knownIDs[gameID] {
		return true
	}
	w.knownIDs[gameID] = true
	return false
}

type playerInfo struct {
	username string
	statsURL string
}

func (w *Worker) leaderboardPlayers(ctx context.Context, leaderboardURL string) ([]playerInfo, string, error) {
	doc, err := w.fetchDocument(ctx, leaderboardURL)
	if err != nil {
		return nil, "", err
	}

	arena := "unknown"
	if matches := w.arenaRe.FindStringSubmatch(leaderboardURL); len(matches) >= 2 {
		arena = matches[1]
	}

	var players []playerInfo
	seen := make(map[string]bool)

	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		matches := w.playerRe.FindStringSubmatch(href)
		if len(matches) < 2 {
			return
		}
		username := matches[1]
		if seen[username] {
			return
		}
		seen[username] = true
		players = append(players, playerInfo{
			username: username,
			statsURL: w.config.BaseURL + href,
		})
	})

	return players, arena, nil
}

func (w *Worker) playerGames(ctx context.Context, statsURL string) ([]string, error) {
	doc, err := w.fetchDocument(ctx, statsURL)
	if err != nil {
		return nil, err
	}

	var gameIDs []string
	seen := make(map[string]bool)

	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		matches := w.gameIDRe.FindStringSubmatch(href)
		if len(matches) < 2 {
			return
		}
		gameID := matches[1]
		if seen[gameID] {
			return
		}
		seen[gameID] = true
		gameIDs = append(gameIDs, gameID)
	})

	return gameIDs, nil
}

func (w *Worker) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}
