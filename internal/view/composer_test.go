package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/spacesedan/feedbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePosts() []models.Post {
	created := models.Timestamp{Time: time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)}
	return []models.Post{
		{ID: "1", Platform: "reddit", Text: "**Love** the new [app](https://example.com)", Sentiment: models.SentimentPositive, Emotion: []string{"joy"}, Topics: []string{"app"}, CreatedAt: &created},
		{ID: "2", Platform: "twitter", Text: "shipping is slow", Sentiment: models.SentimentNegative, Emotion: []string{"anger"}, Topics: []string{"shipping"}},
		{ID: "3", Platform: "twitter", Text: "ok I guess", Sentiment: models.SentimentMixed, Emotion: []string{"joy"}},
	}
}

func TestNewComposerIsLoading(t *testing.T) {
	c := NewComposer("acme")
	in := c.Insights()

	assert.Equal(t, StateLoading, in.State)
	assert.Equal(t, "acme", in.Brand)
	assert.Equal(t, 0, in.Sentiment.Total())
	assert.Len(t, in.Sentiment, 3)
	assert.Nil(t, in.UpdatedAt)
}

func TestApplyEmptySnapshot(t *testing.T) {
	c := NewComposer("acme")
	in := c.Apply([]models.Post{})

	assert.Equal(t, StateEmpty, in.State)
	assert.Equal(t, EmptyMessage, in.Message)
	assert.Equal(t, 0, in.PostCount)
	assert.NotNil(t, in.Posts)
	assert.NotNil(t, in.UpdatedAt)
}

func TestApplyBuildsChartsAndRows(t *testing.T) {
	c := NewComposer("acme")
	in := c.Apply(samplePosts())

	assert.Equal(t, StateReady, in.State)
	assert.Empty(t, in.Message)
	assert.Equal(t, 3, in.PostCount)
	assert.Equal(t, []string{"Positive", "Negative", "Mixed"}, in.Sentiment.Labels())
	assert.Equal(t, 2, in.Emotions.Count("joy"))
	assert.Equal(t, []string{"app", "shipping"}, in.Topics.Labels())

	require.Len(t, in.Posts, 3)
	assert.Equal(t, "Love the new app", in.Posts[0].Preview)
	require.NotNil(t, in.Posts[0].CreatedAt)
	assert.Nil(t, in.Posts[1].CreatedAt)
}

func TestApplyReplacesPreviousSnapshot(t *testing.T) {
	c := NewComposer("acme")
	c.Apply(samplePosts())

	in := c.Apply([]models.Post{{ID: "9", Text: "new", Sentiment: models.SentimentNegative}})

	assert.Equal(t, 1, in.PostCount)
	assert.Equal(t, 0, in.Sentiment.Count("Positive"))
	assert.Equal(t, 1, in.Sentiment.Count("Negative"))
	assert.Empty(t, in.Emotions)
	assert.Equal(t, in, c.Insights())
}

func TestBindJobMatchesBrand(t *testing.T) {
	c := NewComposer("acme")

	c.BindJob(models.Job{Brand: "other", Status: models.JobSubmitted})
	assert.Nil(t, c.Insights().Job)

	c.BindJob(models.Job{Brand: "acme", Status: models.JobSubmitted})
	require.NotNil(t, c.Insights().Job)

	in := c.Apply(nil)
	require.NotNil(t, in.Job)
	assert.Equal(t, models.JobSubmitted, in.Job.Status)
}

func TestRenderText(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderText(&buf, NewComposer("acme").Insights()))
		assert.Contains(t, buf.String(), "Loading results")
	})

	t.Run("empty", func(t *testing.T) {
		c := NewComposer("acme")
		var buf bytes.Buffer
		require.NoError(t, RenderText(&buf, c.Apply(nil)))
		assert.Contains(t, buf.String(), "No data yet. Still polling for acme.")
	})

	t.Run("ready", func(t *testing.T) {
		c := NewComposer("acme")
		var buf bytes.Buffer
		require.NoError(t, RenderText(&buf, c.Apply(samplePosts())))

		out := buf.String()
		assert.Contains(t, out, "Insights for acme")
		assert.Contains(t, out, "Sentiment")
		assert.Contains(t, out, "█")
		assert.Contains(t, out, "[reddit] Positive: Love the new app")
	})
}
