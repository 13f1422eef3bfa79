package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/statusd/internal/model"
)

// StreamEvent is one event received from GET /v1/events/stream.
type StreamEvent struct {
	ID    uint64
	Topic string
	Event *model.Event
}

// Stream follows the server's event stream and calls fn for each event until
// ctx is done, the server closes the connection, or fn returns an error.
// A cancelled ctx ends the stream without error. Events that fail to decode
// are skipped.
func (c *HTTPClient) Stream(ctx context.Context, topics []string, fn func(StreamEvent) error) error {
	target := c.baseURL + "/v1/events/stream"
	if len(topics) > 0 {
		target += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// The request client's timeout would cut the stream short.
	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var (
		evt  StreamEvent
		data string
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			evt.ID, _ = strconv.ParseUint(strings.TrimPrefix(line, "id:"), 10, 64)
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && data != "":
			var e model.Event
			if json.Unmarshal([]byte(data), &e) == nil {
				evt.Event = &e
				if err := fn(evt); err != nil {
					return err
				}
			}
			evt, data = StreamEvent{}, ""
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}
