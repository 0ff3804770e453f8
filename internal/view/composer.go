// Package view composes the insights page model from the latest results
// snapshot of one brand.
package view

import (
	"sync"
	"time"

	"github.com/spacesedan/feedbot/internal/aggregate"
	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spacesedan/feedbot/internal/text"
)

type State string

const (
	StateLoading State = "loading"
	StateEmpty   State = "empty"
	StateReady   State = "ready"
)

const (
	PreviewLength = 280
	EmptyMessage  = "No data yet"
)

type PostRow struct {
	ID        string     `json:"id"`
	Platform  string     `json:"platform,omitempty"`
	Sentiment string     `json:"sentiment,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Preview   string     `json:"preview"`
	Emotions  []string   `json:"emotions,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type Insights struct {
	Brand     string                 `json:"brand"`
	State     State                  `json:"state"`
	Message   string                 `json:"message,omitempty"`
	Job       *models.Job            `json:"job,omitempty"`
	Sentiment aggregate.Distribution `json:"sentiment"`
	Emotions  aggregate.Distribution `json:"emotions"`
	Topics    aggregate.Distribution `json:"topics"`
	Posts     []PostRow              `json:"posts"`
	PostCount int                    `json:"post_count"`
	UpdatedAt *time.Time             `json:"updated_at,omitempty"`
}

// Composer holds the current Insights for one brand. Every Apply replaces the
// previous snapshot wholesale.
type Composer struct {
	mu      sync.RWMutex
	current Insights
	now     func() time.Time
}

func NewComposer(brand string) *Composer {
	summary := aggregate.Summarize(nil)
	return &Composer{
		current: Insights{
			Brand:     brand,
			State:     StateLoading,
			Sentiment: summary.Sentiment,
			Emotions:  summary.Emotions,
			Topics:    summary.Topics,
			Posts:     []PostRow{},
		},
		now: time.Now,
	}
}

func (c *Composer) Apply(posts []models.Post) Insights {
	summary := aggregate.Summarize(posts)
	rows := make([]PostRow, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, toRow(p))
	}
	updated := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	next := Insights{
		Brand:     c.current.Brand,
		State:     StateReady,
		Job:       c.current.Job,
		Sentiment: summary.Sentiment,
		Emotions:  summary.Emotions,
		Topics:    summary.Topics,
		Posts:     rows,
		PostCount: len(posts),
		UpdatedAt: &updated,
	}
	if len(posts) == 0 {
		next.State = StateEmpty
		next.Message = EmptyMessage
	}
	c.current = next
	return next
}

// BindJob attaches the submission status when it belongs to this brand.
func (c *Composer) BindJob(job models.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job.Brand != c.current.Brand {
		return
	}
	c.current.Job = &job
}

func (c *Composer) Insights() Insights {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func toRow(p models.Post) PostRow {
	row := PostRow{
		ID:        p.ID,
		Platform:  p.Platform,
		Sentiment: string(p.Sentiment),
		Summary:   p.Summary,
		Preview:   text.Preview(p.Text, PreviewLength),
		Emotions:  p.Emotion,
		Topics:    p.Topics,
	}
	if p.CreatedAt != nil && !p.CreatedAt.IsZero() {
		t := p.CreatedAt.Time
		row.CreatedAt = &t
	}
	return row
}
