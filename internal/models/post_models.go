package models

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentMixed    Sentiment = "Mixed"
)

// Sentiments lists the labelled sentiment values in chart order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentMixed}

// Post is one analyzed piece of content as served by the backend /results
// endpoint. Records are immutable once observed; only new ids appear in later
// polls.
type Post struct {
	ID            string     `json:"id"`
	Brand         string     `json:"brand,omitempty"`
	Platform      string     `json:"platform,omitempty"`
	Text          string     `json:"text"`
	Sentiment     Sentiment  `json:"sentiment,omitempty"`
	Confidence    *int       `json:"confidence,omitempty"`
	Emotion       []string   `json:"emotion,omitempty"`
	Topics        []string   `json:"topics,omitempty"`
	Intent        string     `json:"intent,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	PolarityScore *int       `json:"polarity_score,omitempty"`
	CreatedAt     *Timestamp `json:"created_at,omitempty"`
}

// Timestamp accepts both zoned and naive ISO-8601 values; the backend emits
// naive datetimes for rows scraped without timezone information. Anything it
// cannot parse decodes to the zero time so one bad row never fails a batch.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	t.Time = time.Time{}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("[Models] Ignoring non-string timestamp", slog.String("value", string(data)))
		return nil
	}
	if raw == "" {
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}

	slog.Warn("[Models] Ignoring unrecognised timestamp", slog.String("value", raw))
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}
