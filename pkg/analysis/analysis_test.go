package analysis_test

import (
	"math"
	"testing"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/analysis"
	"github.com/hearsaylabs/hearsay/pkg/session"
)

func seg(seq uint64, speaker string, confidence float64, sentiment string, topics, keywords []string) session.Segment {
	return session.Segment{
		SessionID:  "s1",
		Seq:        seq,
		Content:    "...",
		SpeakerID:  speaker,
		Confidence: confidence,
		Sentiment:  sentiment,
		Topics:     topics,
		Keywords:   keywords,
		Timestamp:  time.Now().UTC(),
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := analysis.Summarize(nil); got != nil {
		t.Fatalf("Summarize(nil) = %+v, want nil", got)
	}
	if got := analysis.Summarize([]session.Segment{}); got != nil {
		t.Fatalf("Summarize(empty) = %+v, want nil", got)
	}
}

func TestSummarizeAverageConfidence(t *testing.T) {
	s := analysis.Summarize([]session.Segment{
		seg(1, "", 0.9, "", nil, nil),
		seg(2, "", 0.8, "", nil, nil),
		seg(3, "", 0.95, "", nil, nil),
	})
	if s == nil {
		t.Fatal("nil summary")
	}
	if s.TotalSegments != 3 {
		t.Errorf("TotalSegments = %d, want 3", s.TotalSegments)
	}
	want := (0.9 + 0.8 + 0.95) / 3
	if math.Abs(s.AverageConfidence-want) > 1e-9 {
		t.Errorf("AverageConfidence = %f, want %f", s.AverageConfidence, want)
	}
}

func TestSummarizeSentiments(t *testing.T) {
	s := analysis.Summarize([]session.Segment{
		seg(1, "", 0.9, "positive", nil, nil),
		seg(2, "", 0.9, "negative", nil, nil),
		seg(3, "", 0.9, "positive", nil, nil),
		seg(4, "", 0.9, "", nil, nil),
	})
	if s.Sentiments["positive"] != 2 || s.Sentiments["negative"] != 1 {
		t.Errorf("Sentiments = %v", s.Sentiments)
	}
	if _, ok := s.Sentiments[""]; ok {
		t.Error("empty sentiment must not be counted")
	}
}

func TestSummarizeTopTopicsTieBreak(t *testing.T) {
	// "weather" and "sports" tie at 2; "weather" appeared first and must
	// sort first. Six distinct topics, only five survive truncation.
	s := analysis.Summarize([]session.Segment{
		seg(1, "", 0.9, "", []string{"weather", "news"}, nil),
		seg(2, "", 0.9, "", []string{"sports", "weather"}, nil),
		seg(3, "", 0.9, "", []string{"sports", "travel"}, nil),
		seg(4, "", 0.9, "", []string{"food", "music"}, nil),
	})
	got := make([]string, len(s.TopTopics))
	for i, c := range s.TopTopics {
		got[i] = c.Label
	}
	want := []string{"weather", "sports", "news", "travel", "food"}
	if len(got) != len(want) {
		t.Fatalf("TopTopics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TopTopics = %v, want %v", got, want)
		}
	}
	if s.TopTopics[0].Count != 2 {
		t.Errorf("top topic count = %d, want 2", s.TopTopics[0].Count)
	}
}

func TestSummarizeKeywordTruncation(t *testing.T) {
	keywords := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	s := analysis.Summarize([]session.Segment{
		seg(1, "", 0.9, "", nil, keywords),
	})
	if len(s.TopKeywords) != analysis.TopKeywordCount {
		t.Errorf("got %d keywords, want %d", len(s.TopKeywords), analysis.TopKeywordCount)
	}
	// All tied at 1: first-seen order decides who survives.
	for i := 0; i < analysis.TopKeywordCount; i++ {
		if s.TopKeywords[i].Label != keywords[i] {
			t.Errorf("keyword %d = %q, want %q", i, s.TopKeywords[i].Label, keywords[i])
		}
	}
}

func TestSummarizeSpeakers(t *testing.T) {
	s := analysis.Summarize([]session.Segment{
		seg(1, "alice", 0.9, "", nil, nil),
		seg(2, "bob", 0.9, "", nil, nil),
		seg(3, "alice", 0.9, "", nil, nil),
		seg(4, "", 0.9, "", nil, nil), // unresolved speaker
	})
	if len(s.Speakers) != 2 {
		t.Fatalf("got %d speakers, want 2", len(s.Speakers))
	}
	if s.Speakers[0].ID != "alice" || s.Speakers[0].Segments != 2 {
		t.Errorf("top speaker = %+v, want alice with 2", s.Speakers[0])
	}
	if math.Abs(s.Speakers[0].Share-0.5) > 1e-9 {
		t.Errorf("alice share = %f, want 0.5", s.Speakers[0].Share)
	}
}

func TestSummarizeDeterministic(t *testing.T) {
	segments := []session.Segment{
		seg(1, "alice", 0.7, "positive", []string{"x", "y"}, []string{"k1", "k2"}),
		seg(2, "bob", 0.8, "neutral", []string{"y", "z"}, []string{"k2"}),
		seg(3, "alice", 0.9, "neutral", []string{"x"}, []string{"k3", "k1"}),
	}
	first := analysis.Summarize(segments)
	for i := 0; i < 50; i++ {
		again := analysis.Summarize(segments)
		if again.AverageConfidence != first.AverageConfidence ||
			len(again.TopTopics) != len(first.TopTopics) ||
			len(again.TopKeywords) != len(first.TopKeywords) {
			t.Fatal("summary not deterministic")
		}
		for j := range first.TopTopics {
			if again.TopTopics[j] != first.TopTopics[j] {
				t.Fatalf("run %d: topic %d = %+v, want %+v", i, j, again.TopTopics[j], first.TopTopics[j])
			}
		}
		for j := range first.TopKeywords {
			if again.TopKeywords[j] != first.TopKeywords[j] {
				t.Fatalf("run %d: keyword %d differs", i, j)
			}
		}
		for j := range first.Speakers {
			if again.Speakers[j] != first.Speakers[j] {
				t.Fatalf("run %d: speaker %d differs", i, j)
			}
		}
	}
}
