// Package analysis derives statistics from a session's transcript
// segments. A Summary is a pure function of the segment sequence: the same
// segments always produce the same summary, regardless of when or how often
// it is computed.
package analysis

import (
	"sort"

	"github.com/hearsaylabs/hearsay/pkg/session"
)

// Policy constants for top-N truncation.
const (
	TopTopicCount   = 5
	TopKeywordCount = 10
)

// Speaker is one speaker's share of a session.
type Speaker struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Segments int     `json:"segments"`
	Share    float64 `json:"share"`
}

// Count is a label with its occurrence count.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary aggregates a session's segments.
type Summary struct {
	TotalSegments     int            `json:"totalSegments"`
	Sentiments        map[string]int `json:"sentiments,omitempty"`
	TopTopics         []Count        `json:"topTopics,omitempty"`
	TopKeywords       []Count        `json:"topKeywords,omitempty"`
	Speakers          []Speaker      `json:"speakers,omitempty"`
	AverageConfidence float64        `json:"averageConfidence"`
}

// Summarize folds over the segments in order. It returns nil for an empty
// session, distinguishing "no data" from all-zero statistics.
func Summarize(segments []session.Segment) *Summary {
	if len(segments) == 0 {
		return nil
	}

	s := &Summary{
		TotalSegments: len(segments),
		Sentiments:    make(map[string]int),
	}
	topics := newCounter()
	keywords := newCounter()
	speakers := newCounter()
	speakerNames := make(map[string]string)

	var confidenceSum float64
	for _, seg := range segments {
		confidenceSum += seg.Confidence
		if seg.Sentiment != "" {
			s.Sentiments[seg.Sentiment]++
		}
		for _, t := range seg.Topics {
			topics.add(t)
		}
		for _, k := range seg.Keywords {
			keywords.add(k)
		}
		if seg.SpeakerID != "" {
			speakers.add(seg.SpeakerID)
			speakerNames[seg.SpeakerID] = seg.SpeakerName
		}
	}
	if len(s.Sentiments) == 0 {
		s.Sentiments = nil
	}

	s.AverageConfidence = confidenceSum / float64(len(segments))
	s.TopTopics = topics.top(TopTopicCount)
	s.TopKeywords = keywords.top(TopKeywordCount)

	identified := speakers.top(len(speakers.counts))
	for _, c := range identified {
		s.Speakers = append(s.Speakers, Speaker{
			ID:       c.Label,
			Name:     speakerNames[c.Label],
			Segments: c.Count,
			Share:    float64(c.Count) / float64(len(segments)),
		})
	}
	return s
}

// counter counts labels and remembers each label's first-seen position so
// top-N truncation breaks frequency ties deterministically.
type counter struct {
	counts map[string]int
	order  map[string]int
	next   int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int), order: make(map[string]int)}
}

func (c *counter) add(label string) {
	if _, seen := c.counts[label]; !seen {
		c.order[label] = c.next
		c.next++
	}
	c.counts[label]++
}

// top returns up to n labels by descending count, ties broken by
// first-seen order.
func (c *counter) top(n int) []Count {
	if len(c.counts) == 0 || n <= 0 {
		return nil
	}
	all := make([]Count, 0, len(c.counts))
	for label, count := range c.counts {
		all = append(all, Count{Label: label, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return c.order[all[i].Label] < c.order[all[j].Label]
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
