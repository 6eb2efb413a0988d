package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionFirstMoveAfterStartIsNotStale(t *testing.T) {
	s := newSessionStore()
	s.start("g1")

	// The engine sends turn 0 on the start notification and again on the
	// first move request, so turn 0 must pass the staleness check.
	require.False(t, s.noteTurn("g1", 0))
	require.False(t, s.noteTurn("g1", 1))
}

func TestSessionDuplicateTurnIsStale(t *testing.T) {
	s := newSessionStore()
	s.start("g1")

	require.False(t, s.noteTurn("g1", 0))
	require.True(t, s.noteTurn("g1", 0))
	require.False(t, s.noteTurn("g1", 1))
	require.True(t, s.noteTurn("g1", 0))
}

func TestSessionUnknownGameIsAdopted(t *testing.T) {
	s := newSessionStore()

	// A move for a game we never saw /start for is served, not rejected.
	require.False(t, s.noteTurn("mystery", 17))
	require.Equal(t, 1, s.count())
	require.True(t, s.noteTurn("mystery", 17))
	require.False(t, s.noteTurn("mystery", 18))
}

func TestSessionEndForgetsGame(t *testing.T) {
	s := newSessionStore()
	s.start("g1")
	s.start("g2")
	require.Equal(t, 2, s.count())

	s.end("g1")
	require.Equal(t, 1, s.count())

	// Ending twice or ending an unknown game is harmless.
	s.end("g1")
	s.end("never-started")
	require.Equal(t, 1, s.count())
}

func TestSessionsAreIndependent(t *testing.T) {
	s := newSessionStore()
	s.start("a")
	s.start("b")

	require.False(t, s.noteTurn("a", 0))
	require.False(t, s.noteTurn("b", 0))
	require.False(t, s.noteTurn("a", 1))
	require.True(t, s.noteTurn("b", 0))
}
