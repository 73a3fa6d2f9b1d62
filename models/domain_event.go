package models

import (
	"time"
)

// Metrics emitted by the content/login/event subsystems. The tracker
// accepts any metric string (new achievements may reference new metrics),
// these are the ones the platform emits today.
const (
	MetricCasesSolved = "cases_solved"
	MetricLoginStreak = "login_streak"
	MetricEventsWon   = "events_won"
	MetricCoinsEarned = "coins_earned"
)

// DomainEvent is the inbound fire-and-forget notification consumed by the
// achievement progress tracker: "user did something measurable".
type DomainEvent struct {
	UserID     string    `json:"user_id"`
	Metric     string    `json:"metric"`
	Value      int64     `json:"value"`
	OccurredAt time.Time `json:"occurred_at"`
}
