// Package aggregate reduces a snapshot of analyzed posts into the categorical
// distributions the insights charts consume. Every function is pure: the same
// input sequence always yields the same buckets in the same order.
package aggregate

import "github.com/spacesedan/feedbot/internal/models"

type Bucket struct {
	Label string `json:"name"`
	Count int    `json:"count"`
}

// Distribution is an ordered label -> count mapping.
type Distribution []Bucket

func (d Distribution) Count(label string) int {
	for _, b := range d {
		if b.Label == label {
			return b.Count
		}
	}
	return 0
}

func (d Distribution) Total() int {
	total := 0
	for _, b := range d {
		total += b.Count
	}
	return total
}

func (d Distribution) Labels() []string {
	labels := make([]string, len(d))
	for i, b := range d {
		labels[i] = b.Label
	}
	return labels
}

type Summary struct {
	Sentiment Distribution `json:"sentiment"`
	Emotions  Distribution `json:"emotions"`
	Topics    Distribution `json:"topics"`
}

func Summarize(posts []models.Post) Summary {
	return Summary{
		Sentiment: Sentiment(posts),
		Emotions:  Emotions(posts),
		Topics:    Topics(posts),
	}
}

// Sentiment counts posts over the fixed Positive, Negative, Mixed buckets.
// Unlabelled or unknown values are dropped rather than bucketed.
func Sentiment(posts []models.Post) Distribution {
	dist := make(Distribution, len(models.Sentiments))
	index := make(map[models.Sentiment]int, len(models.Sentiments))
	for i, s := range models.Sentiments {
		dist[i] = Bucket{Label: string(s)}
		index[s] = i
	}

	for _, p := range posts {
		if i, ok := index[p.Sentiment]; ok {
			dist[i].Count++
		}
	}
	return dist
}

func Emotions(posts []models.Post) Distribution {
	return tally(posts, func(p models.Post) []string { return p.Emotion })
}

func Topics(posts []models.Post) Distribution {
	return tally(posts, func(p models.Post) []string { return p.Topics })
}

// tally counts every tag occurrence, keeping labels in first-seen order.
func tally(posts []models.Post, tags func(models.Post) []string) Distribution {
	dist := Distribution{}
	index := make(map[string]int)

	for _, p := range posts {
		for _, tag := range tags(p) {
			if tag == "" {
				continue
			}
			i, ok := index[tag]
			if !ok {
				i = len(dist)
				index[tag] = i
				dist = append(dist, Bucket{Label: tag})
			}
			dist[i].Count++
		}
	}
	return dist
}
