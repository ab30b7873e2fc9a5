package domain

import "time"

// ConversationEvent is the aggregated record shipped to the analytics
// warehouse after a chat exchange. Warehouse failures never surface to the
// user-facing request.
type ConversationEvent struct {
	UserID           string
	EmotionalTag     string
	ConversationMode string
	SentimentScore   float64
	CountryCode      string
	Timestamp        time.Time
}

// EmotionalTrendPoint is one day of the 30-day emotional trend query.
type EmotionalTrendPoint struct {
	Date              time.Time
	AvgSentiment      float64
	ConversationCount int
}
