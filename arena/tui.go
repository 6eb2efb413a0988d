package main

import (
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type GameUpdate struct {
	WorkerID int
	Result   GameResult
}

type model struct {
	gamesPlayed int
	decisions   int64
	wins        map[string]int
	draws       int
	startTime   time.Time
	recentGames []string
	updates     chan GameUpdate
}

func initialModel(updates chan GameUpdate) model {
	return model{
		startTime: time.Now(),
		wins:      make(map[string]int),
		updates:   updates,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan GameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.decisions = totalDecisions.Load()
		return m, tickCmd()
	case GameUpdate:
		m.gamesPlayed++
		if msg.Result.WinnerID == "" {
			m.draws++
		} else {
			m.wins[msg.Result.WinnerID]++
		}
		logMsg := fmt.Sprintf("Worker %d: winner %s, turns %d", msg.WorkerID, winnerLabel(msg.Result.WinnerID), msg.Result.Turns)
		m.recentGames = append([]string{logMsg}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := float64(m.gamesPlayed) / duration.Seconds()
	decisionsPerSec := float64(m.decisions) / duration.Seconds()
	if duration.Seconds() < 1 {
		gamesPerSec = 0
		decisionsPerSec = 0
	}

	s := fmt.Sprintf("Games Played:   %d\n", m.gamesPlayed)
	s += fmt.Sprintf("Decisions:      %d\n", m.decisions)
	s += fmt.Sprintf("Duration:       %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Games/Sec:      %.2f\n", gamesPerSec)
	s += fmt.Sprintf("Decisions/Sec:  %.2f\n\n", decisionsPerSec)

	s += "Wins:\n"
	ids := make([]string, 0, len(m.wins))
	for id := range m.wins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s += fmt.Sprintf("  %s: %d\n", id, m.wins[id])
	}
	s += fmt.Sprintf("  draws: %d\n\n", m.draws)

	s += "Recent Games:\n"
	for _, g := range m.recentGames {
		s += g + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}

func winnerLabel(id string) string {
	if id == "" {
		return "draw"
	}
	return id
}
