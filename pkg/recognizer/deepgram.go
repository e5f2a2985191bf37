package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearsaylabs/hearsay/pkg/audio"
)

const (
	deepgramBaseURL = "https://api.deepgram.com"
	deepgramWSURL   = "wss://api.deepgram.com"
	defaultModel    = "nova-2"
)

// Deepgram is a Transcriber and StreamOpener backed by the Deepgram API.
type Deepgram struct {
	apiKey     string
	baseURL    string
	wsURL      string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

var (
	_ Transcriber  = (*Deepgram)(nil)
	_ StreamOpener = (*Deepgram)(nil)
)

// DeepgramOption configures a Deepgram client.
type DeepgramOption func(*Deepgram)

// WithDeepgramBaseURL overrides the HTTP API base URL.
func WithDeepgramBaseURL(u string) DeepgramOption {
	return func(d *Deepgram) { d.baseURL = u }
}

// WithDeepgramWSURL overrides the WebSocket URL.
func WithDeepgramWSURL(u string) DeepgramOption {
	return func(d *Deepgram) { d.wsURL = u }
}

// WithDeepgramHTTPClient sets a custom HTTP client.
func WithDeepgramHTTPClient(c *http.Client) DeepgramOption {
	return func(d *Deepgram) { d.httpClient = c }
}

// NewDeepgram creates a Deepgram client.
func NewDeepgram(apiKey string, opts ...DeepgramOption) *Deepgram {
	d := &Deepgram{
		apiKey:  apiKey,
		baseURL: deepgramBaseURL,
		wsURL:   deepgramWSURL,
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.httpClient == nil {
		d.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return d
}

// Transcribe transcribes a complete prerecorded sample.
func (d *Deepgram) Transcribe(ctx context.Context, sample audio.Sample) (string, error) {
	q := url.Values{}
	q.Set("model", defaultModel)
	q.Set("smart_format", "true")
	if sample.Encoding == audio.PCM16 {
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(sample.SampleRate))
		q.Set("channels", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/v1/listen?"+q.Encode(), bytes.NewReader(sample.Data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", sampleContentType(sample))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("transcribe: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", parseAPIError(resp.StatusCode, body)
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}

// OpenStream opens a live transcription WebSocket.
func (d *Deepgram) OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	q := url.Values{}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	q.Set("model", model)
	if cfg.Encoding != "" {
		q.Set("encoding", cfg.Encoding)
	}
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	channels := cfg.Channels
	if channels == 0 {
		channels = 1
	}
	q.Set("channels", strconv.Itoa(channels))
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	q.Set("smart_format", "true")
	if cfg.InterimResults {
		q.Set("interim_results", "true")
	}
	if cfg.Diarize {
		q.Set("diarize", "true")
	}
	if cfg.Sentiment {
		q.Set("sentiment", "true")
	}
	if cfg.Topics {
		q.Set("topics", "true")
	}
	if cfg.Keywords {
		q.Set("keywords", "true")
	}

	header := http.Header{"Authorization": {"Token " + d.apiKey}}
	conn, resp, err := d.dialer.DialContext(ctx, d.wsURL+"/v1/listen?"+q.Encode(), header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("open stream: %w: %s", err, parseAPIError(resp.StatusCode, body))
		}
		return nil, fmt.Errorf("open stream: %w", err)
	}

	ls := &liveStream{
		conn:    conn,
		eventCh: make(chan *TranscriptEvent, 64),
		errCh:   make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go ls.recvLoop()
	return ls, nil
}

// liveStream is one live transcription WebSocket connection.
type liveStream struct {
	conn    *websocket.Conn
	eventCh chan *TranscriptEvent
	errCh   chan error
	closeCh chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ Stream = (*liveStream)(nil)

// liveMessage is the provider's transcript message shape.
type liveMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Sentiment  string  `json:"sentiment,omitempty"`
			Words      []struct {
				Speaker *int `json:"speaker,omitempty"`
			} `json:"words,omitempty"`
		} `json:"alternatives"`
	} `json:"channel"`
	Metadata struct {
		Topics   []string `json:"topics,omitempty"`
		Keywords []string `json:"keywords,omitempty"`
	} `json:"metadata"`
}

func (s *liveStream) recvLoop() {
	defer close(s.eventCh)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
				// Local close, not a transport failure.
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					break
				}
				select {
				case s.errCh <- err:
				default:
				}
			}
			return
		}

		var msg liveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // control frames and metadata messages
		}
		if msg.Type != "" && msg.Type != "Results" {
			continue
		}
		if len(msg.Channel.Alternatives) == 0 {
			continue
		}
		alt := msg.Channel.Alternatives[0]
		ev := &TranscriptEvent{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
			Sentiment:  alt.Sentiment,
			Topics:     msg.Metadata.Topics,
			Keywords:   msg.Metadata.Keywords,
			Received:   time.Now(),
		}
		if len(alt.Words) > 0 && alt.Words[0].Speaker != nil {
			ev.SpeakerTag = strconv.Itoa(*alt.Words[0].Speaker)
		}

		select {
		case s.eventCh <- ev:
		case <-s.closeCh:
			return
		}
	}
}

// SendAudio writes one audio chunk. With last set, a close-stream control
// message follows the chunk so the provider flushes pending transcripts.
func (s *liveStream) SendAudio(ctx context.Context, chunk []byte, last bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if len(chunk) > 0 {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}
	if last {
		msg, _ := json.Marshal(map[string]string{"type": "CloseStream"})
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("close stream: %w", err)
		}
	}
	return nil
}

// Events yields transcript events in arrival order.
func (s *liveStream) Events() iter.Seq2[*TranscriptEvent, error] {
	return func(yield func(*TranscriptEvent, error) bool) {
		for {
			select {
			case ev, ok := <-s.eventCh:
				if !ok {
					// Drain a trailing transport error, if any.
					select {
					case err := <-s.errCh:
						yield(nil, err)
					default:
					}
					return
				}
				if !yield(ev, nil) {
					return
				}
			case err := <-s.errCh:
				yield(nil, err)
				return
			case <-s.closeCh:
				return
			}
		}
	}
}

// Close releases the connection.
func (s *liveStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}
