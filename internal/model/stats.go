package model

import (
	"strings"
	"time"
)

type SessionStats struct {
	StartTime          time.Time `json:"startTime"`
	WordsPracticed     int       `json:"wordsPracticed"`
	MessagesSent       int       `json:"messagesSent"`
	RunningAccuracySum float64   `json:"runningAccuracySum"`
}

func NewSessionStats(start time.Time) SessionStats {
	return SessionStats{StartTime: start}
}

// Record accounts for one outbound user message. accuracy is in [0, 1].
func (s *SessionStats) Record(text string, accuracy float64) {
	s.WordsPracticed += len(strings.Fields(text))
	s.MessagesSent++
	s.RunningAccuracySum += accuracy
}

func (s SessionStats) AccuracyScore() float64 {
	if s.MessagesSent == 0 {
		return 0
	}
	return s.RunningAccuracySum / float64(s.MessagesSent)
}

func (s SessionStats) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}
