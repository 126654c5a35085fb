package leaderboard

import (
	"questphone/core"
)

// Entry is one row on the streak leaderboard. Ordering is current streak
// descending, longest streak descending as tie break, then user ascending.
type Entry struct {
	User    core.UserID `json:"user"`
	Streak  int         `json:"streak"`
	Longest int         `json:"longest"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, streak, longest int)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
}

// Hook keeps a board current from the streak event stream. Register it on
// the event bus alongside the analytics hooks.
type Hook struct {
	board Board
}

func NewHook(board Board) *Hook { return &Hook{board: board} }

func (h *Hook) OnEvent(e core.Event) {
	switch e.Type {
	case core.EventStreakContinued:
		entry, _ := h.board.Get(e.UserID)
		longest := entry.Longest
		if e.Streak > longest {
			longest = e.Streak
		}
		h.board.Update(e.UserID, e.Streak, longest)
	case core.EventStreakBroken:
		entry, ok := h.board.Get(e.UserID)
		if !ok {
			return
		}
		h.board.Update(e.UserID, 0, entry.Longest)
	}
}
