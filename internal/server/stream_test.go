package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/model"
)

func newTestStream(t *testing.T) (*events.Bus, *Stream, http.Handler) {
	t.Helper()
	bus := events.NewBus(testLogger(), nil)
	st := NewStream(bus, events.Topics, testLogger())
	t.Cleanup(st.Close)

	srv := NewStatusServer(fakeStatus{}, nil, nil, nil, testLogger())
	srv.EnableStream(st)
	return bus, st, srv.NewHTTPHandler("")
}

func publishSocket(bus *events.Bus, title, status string) {
	bus.Publish(events.TopicSocket, codec.Encode(model.NewEvent(title, model.KindSocket, model.Description(status))))
}

// streamBody runs a stream request, calls during once the subscription is
// registered, and returns the response once the request is cancelled.
func streamBody(t *testing.T, handler http.Handler, target string, header http.Header, during func()) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	during()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	return rec
}

func TestStream_BroadcastAndReceive(t *testing.T) {
	bus, st, _ := newTestStream(t)

	client := st.subscribe(nil)
	defer st.unsubscribe(client)

	publishSocket(bus, "backup", "running")

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicSocket {
			t.Fatalf("Topic = %q, want %q", evt.Topic, events.TopicSocket)
		}
		if evt.ID != 1 {
			t.Fatalf("ID = %d, want 1", evt.ID)
		}
		var got struct {
			Title  string            `json:"title"`
			Kind   string            `json:"kind"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.Unmarshal(evt.Data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.Title != "backup" || got.Kind != "socket" || got.Fields["description"] != "running" {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestStream_DropsUndecodable(t *testing.T) {
	bus, st, _ := newTestStream(t)

	client := st.subscribe(nil)
	defer st.unsubscribe(client)

	bus.Publish(events.TopicSocket, []byte("garbage"))

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: %s", evt.Data)
	case <-time.After(50 * time.Millisecond):
	}
	if got := st.eventsSince(0); len(got) != 0 {
		t.Errorf("ring holds %d events, want 0", len(got))
	}
}

func TestStream_TopicFiltering(t *testing.T) {
	bus, st, _ := newTestStream(t)

	client := st.subscribe([]string{"hw_*"})
	defer st.unsubscribe(client)

	publishSocket(bus, "backup", "running")
	bus.Publish(events.TopicHwUsage, codec.Encode(model.NewEvent("usage", model.KindHardwareUsage, model.CPU(1), model.Memory(2))))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicHwUsage {
			t.Fatalf("Topic = %q, want %q", evt.Topic, events.TopicHwUsage)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStream_Unsubscribe(t *testing.T) {
	bus, st, _ := newTestStream(t)

	client := st.subscribe(nil)
	st.unsubscribe(client)
	publishSocket(bus, "backup", "running")

	select {
	case <-client.ch:
		t.Fatal("unsubscribed client received an event")
	default:
	}
}

func TestStream_CloseUnsubscribesFromBus(t *testing.T) {
	bus := events.NewBus(testLogger(), nil)
	st := NewStream(bus, events.Topics, testLogger())
	if n := bus.Subscribers(events.TopicSocket); n != 1 {
		t.Fatalf("Subscribers = %d, want 1", n)
	}
	st.Close()
	for _, topic := range events.Topics {
		if n := bus.Subscribers(topic); n != 0 {
			t.Errorf("Subscribers(%s) = %d after Close, want 0", topic, n)
		}
	}
}

func TestStream_EventsSince(t *testing.T) {
	st := &Stream{clients: make(map[*streamClient]struct{})}
	for range 5 {
		st.broadcast(events.TopicSocket, []byte(`{}`))
	}

	tests := []struct {
		lastID  uint64
		wantLen int
		wantID  uint64
	}{
		{0, 5, 1},
		{3, 2, 4},
		{5, 0, 0},
	}
	for _, tt := range tests {
		got := st.eventsSince(tt.lastID)
		if len(got) != tt.wantLen {
			t.Errorf("eventsSince(%d) returned %d events, want %d", tt.lastID, len(got), tt.wantLen)
			continue
		}
		if tt.wantLen > 0 && got[0].ID != tt.wantID {
			t.Errorf("eventsSince(%d)[0].ID = %d, want %d", tt.lastID, got[0].ID, tt.wantID)
		}
	}
}

func TestStream_RingWrap(t *testing.T) {
	st := &Stream{clients: make(map[*streamClient]struct{})}
	for range streamRingSize + 10 {
		st.broadcast(events.TopicSocket, []byte(`{}`))
	}

	got := st.eventsSince(0)
	if len(got) != streamRingSize {
		t.Fatalf("got %d events, want %d", len(got), streamRingSize)
	}
	if got[0].ID != 11 {
		t.Errorf("oldest ID = %d, want 11", got[0].ID)
	}
	if last := got[len(got)-1].ID; last != streamRingSize+10 {
		t.Errorf("newest ID = %d, want %d", last, streamRingSize+10)
	}
}

func TestStreamClient_MatchesTopic(t *testing.T) {
	tests := []struct {
		topics []string
		topic  string
		want   bool
	}{
		{nil, events.TopicSocket, true},
		{[]string{"*"}, events.TopicProcess, true},
		{[]string{events.TopicSocket}, events.TopicSocket, true},
		{[]string{events.TopicSocket}, events.TopicProcess, false},
		{[]string{"hw_*"}, events.TopicHwUsage, true},
		{[]string{"hw_*"}, events.TopicDateTime, false},
		{[]string{"process_*", "socket"}, events.TopicSocket, true},
		{[]string{"["}, events.TopicSocket, false},
	}
	for _, tt := range tests {
		c := &streamClient{topics: tt.topics}
		if got := c.matchesTopic(tt.topic); got != tt.want {
			t.Errorf("matchesTopic(%v, %q) = %v, want %v", tt.topics, tt.topic, got, tt.want)
		}
	}
}

func TestHandleEventStream(t *testing.T) {
	bus, _, handler := newTestStream(t)

	rec := streamBody(t, handler, "/v1/events/stream", nil, func() {
		publishSocket(bus, "backup", "running")
	})

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var id, event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}
	if id != "1" {
		t.Errorf("id = %q, want 1", id)
	}
	if event != events.TopicSocket {
		t.Errorf("event = %q, want %q", event, events.TopicSocket)
	}
	if !strings.Contains(data, `"title":"backup"`) {
		t.Errorf("data = %q, want backup event", data)
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	bus, _, handler := newTestStream(t)

	rec := streamBody(t, handler, "/v1/events/stream?topics=process_watcher,+hw_usage", nil, func() {
		publishSocket(bus, "backup", "running")
		bus.Publish(events.TopicProcess, codec.Encode(model.NewEvent("nvim", model.KindProcess, model.Description("Running"))))
	})

	body := rec.Body.String()
	if strings.Contains(body, "event:"+events.TopicSocket) {
		t.Errorf("socket event should have been filtered:\n%s", body)
	}
	if !strings.Contains(body, "event:"+events.TopicProcess) {
		t.Errorf("missing process event:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	bus, _, handler := newTestStream(t)

	publishSocket(bus, "one", "running")
	publishSocket(bus, "two", "running")
	publishSocket(bus, "three", "running")

	rec := streamBody(t, handler, "/v1/events/stream", http.Header{"Last-Event-Id": {"1"}}, func() {})

	body := rec.Body.String()
	if strings.Contains(body, `"title":"one"`) {
		t.Errorf("event 1 should not be replayed:\n%s", body)
	}
	for _, title := range []string{"two", "three"} {
		if !strings.Contains(body, `"title":"`+title+`"`) {
			t.Errorf("missing replayed event %q:\n%s", title, body)
		}
	}
}

func TestHandleEventStream_Disabled(t *testing.T) {
	h := NewStatusServer(fakeStatus{}, nil, nil, nil, testLogger()).NewHTTPHandler("")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/stream", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
