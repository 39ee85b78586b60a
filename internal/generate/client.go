package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fragment is one streamed piece of a model completion. Err is set on the
// final fragment when the stream failed mid-way.
type Fragment struct {
	Text string
	Err  error
}

// Completer streams a completion for a prompt. The returned channel is
// closed when the stream ends, successfully or not.
type Completer interface {
	Complete(ctx context.Context, prompt string, cfg DecodingConfig) (<-chan Fragment, error)
}

// StreamClient talks to a Replicate-compatible prediction API: it creates a
// prediction, then consumes the server-sent event stream the API hands back.
type StreamClient struct {
	baseURL string
	model   string
	token   string
	http    *http.Client
}

// NewStreamClient creates a client for the given API endpoint and model
// identifier. The token is sent as a bearer credential on every request.
func NewStreamClient(baseURL, model, token string, timeout time.Duration) *StreamClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &StreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type predictionRequest struct {
	Stream bool           `json:"stream"`
	Input  map[string]any `json:"input"`
}

type predictionResponse struct {
	ID   string `json:"id"`
	URLs struct {
		Stream string `json:"stream"`
	} `json:"urls"`
	Error string `json:"error"`
}

// Complete creates a streaming prediction and returns a channel of text
// fragments. The channel is closed after the final event.
func (c *StreamClient) Complete(ctx context.Context, prompt string, cfg DecodingConfig) (<-chan Fragment, error) {
	input := map[string]any{
		"prompt":             prompt,
		"seed":               cfg.Seed,
		"top_k":              cfg.TopK,
		"top_p":              cfg.TopP,
		"max_new_tokens":     cfg.MaxTokens,
		"min_new_tokens":     cfg.MinTokens,
		"temperature":        cfg.Temperature,
		"repetition_penalty": cfg.RepetitionPenalty,
	}
	pred, err := c.createPrediction(ctx, predictionRequest{Stream: true, Input: input})
	if err != nil {
		return nil, err
	}
	if pred.URLs.Stream == "" {
		return nil, fmt.Errorf("prediction %s: no stream url", pred.ID)
	}

	resp, err := c.openStream(ctx, pred.URLs.Stream)
	if err != nil {
		return nil, err
	}

	ch := make(chan Fragment, 64)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		readSSEStream(resp.Body, ch)
	}()
	return ch, nil
}

func (c *StreamClient) createPrediction(ctx context.Context, body predictionRequest) (*predictionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}
	url := c.baseURL + "/models/" + c.model + "/predictions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("create prediction: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	if pred.Error != "" {
		return nil, fmt.Errorf("prediction rejected: %s", pred.Error)
	}
	return &pred, nil
}

func (c *StreamClient) openStream(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: status %d", resp.StatusCode)
	}
	return resp, nil
}

// readSSEStream consumes server-sent events until a done or error event.
// Replicate emits "event: output" with the token text in the data lines,
// then "event: done" with an empty data payload. A token containing a
// newline arrives as consecutive data lines within one event, so data
// lines accumulate until the blank line that ends the event and are
// rejoined with "\n".
func readSSEStream(body io.Reader, ch chan<- Fragment) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	var data []string

	// dispatch emits the buffered event; it reports whether to keep reading.
	dispatch := func() bool {
		ev := event
		payload := strings.Join(data, "\n")
		event = ""
		data = data[:0]
		switch ev {
		case "output":
			ch <- Fragment{Text: payload}
		case "error":
			ch <- Fragment{Err: fmt.Errorf("stream error: %s", payload)}
			return false
		case "done":
			return false
		}
		return true
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !dispatch() {
				return
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data:"):
			d := strings.TrimPrefix(line, "data:")
			d = strings.TrimPrefix(d, " ")
			data = append(data, d)
		}
	}
	if !dispatch() {
		return
	}
	if err := scanner.Err(); err != nil {
		ch <- Fragment{Err: fmt.Errorf("read stream: %w", err)}
	}
}
