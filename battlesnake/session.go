package main

import (
	"sync"
)

// sessionStore tracks the last seen turn for every live game, which is the
// only state that outlives a single request. It exists to spot duplicate or
// out-of-order move notifications, losing it on restart just resets that
// detection. The lock is held for map access only, never during a search.
type sessionStore struct {
	mu    sync.Mutex
	games map[string]int32
}

func newSessionStore() *sessionStore {
	return &sessionStore{games: make(map[string]int32)}
}

// start registers a game. The stored turn is the last move turn answered,
// -1 until the first move arrives (the engine sends turn 0 for both the
// start notification and the first move request).
func (s *sessionStore) start(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[gameID] = -1
}

// noteTurn records the turn and reports whether it is stale, meaning a turn
// at or before one already seen. Unknown games are inserted as a courtesy
// so an agent restarted mid-game keeps tracking correctly.
func (s *sessionStore) noteTurn(gameID string, turn int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.games[gameID]
	if !ok {
		s.games[gameID] = turn
		return false
	}
	if turn <= last {
		return true
	}
	s.games[gameID] = turn
	return false
}

func (s *sessionStore) end(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, gameID)
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}
