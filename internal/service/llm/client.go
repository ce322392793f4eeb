package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mindease/backend/internal/model/chat"
)

// ErrMalformedStream marks a response stream that broke the wire
// contract. Treated as a transport-level error by the failover policy.
var ErrMalformedStream = errors.New("malformed response stream")

// maxLineBytes bounds a single SSE data line. Endpoints may batch a
// whole reply into one delta, which overflows bufio.Scanner's 64 KB
// default.
const maxLineBytes = 1 << 20

// APIError carries the endpoint's status and human-readable message,
// which the UI may display verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client issues a single chat turn to a completion endpoint and
// exposes the reply as an ordered stream of text increments. It holds
// no retry logic; failover belongs to the caller.
type Client struct {
	httpClient   *http.Client
	systemPrompt string
}

// NewClient constructs the transcript client. A zero timeout disables
// the hard per-request bound.
func NewClient(timeout time.Duration, systemPrompt string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		systemPrompt: systemPrompt,
	}
}

type sendRequest struct {
	Messages []chat.TurnPayload `json:"messages"`
}

// chunk mirrors the endpoint's SSE payload shape.
type chunk struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Send posts the message history to endpoint and returns the response
// stream. Exactly one request is in flight per returned Stream.
func (c *Client) Send(ctx context.Context, endpoint string, history []chat.Message) (*Stream, error) {
	payload := make([]chat.TurnPayload, 0, len(history)+1)
	if c.systemPrompt != "" {
		payload = append(payload, chat.TurnPayload{Role: string(chat.RoleSystem), Content: c.systemPrompt})
	}
	payload = append(payload, chat.ToPayload(history)...)

	body, err := json.Marshal(sendRequest{Messages: payload})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode >= 400 {
		apiErr := readAPIError(resp)
		resp.Body.Close()
		cancel()
		return nil, apiErr
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Stream{
		body:    resp.Body,
		scanner: scanner,
		cancel:  cancel,
	}, nil
}

func readAPIError(resp *http.Response) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp)
	msg := errResp.Error
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// Stream delivers the content increments of one in-flight reply.
type Stream struct {
	body       io.ReadCloser
	scanner    *bufio.Scanner
	cancel     context.CancelFunc
	cancelOnce sync.Once
	done       bool
}

// Recv blocks for the next content increment. It returns io.EOF after
// the completion signal, context.Canceled after Cancel, and a
// transport-level error otherwise.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			return "", fmt.Errorf("%w: unexpected line %q", ErrMalformedStream, line)
		}
		data = strings.TrimSpace(data)

		var ch chunk
		if err := json.Unmarshal([]byte(data), &ch); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedStream, err)
		}
		switch ch.Event {
		case "delta":
			if ch.Content == "" {
				continue
			}
			return ch.Content, nil
		case "end":
			s.done = true
			return "", io.EOF
		case "error":
			msg := ch.Error
			if msg == "" {
				msg = "stream error"
			}
			return "", &APIError{Status: http.StatusBadGateway, Message: msg}
		default:
			// Unknown events (start, message echoes) are skipped.
		}
	}
	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return "", context.Canceled
		}
		return "", err
	}
	// The stream ended without a completion signal.
	return "", fmt.Errorf("%w: missing completion signal", ErrMalformedStream)
}

// Cancel stops delivery and releases the connection. Idempotent; no
// increment is returned after Cancel.
func (s *Stream) Cancel() {
	s.cancelOnce.Do(func() {
		s.cancel()
		s.body.Close()
	})
}

// Close releases resources after a completed read. Safe to call
// alongside Cancel.
func (s *Stream) Close() {
	s.Cancel()
}
