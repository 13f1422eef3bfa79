package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"0", KindSocket, false},
		{"1", KindProcess, false},
		{"2", KindHardwareUsage, false},
		{"3", KindTimestamp, false},
		{"4", 0, true},
		{"", 0, true},
		{"socket", 0, true},
	} {
		got, err := ParseKind(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseKind(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestParseFieldKey(t *testing.T) {
	for _, name := range []string{"description", "Description", "MEMORY", "cpu", "TimeStamp"} {
		if _, err := ParseFieldKey(name); err != nil {
			t.Errorf("ParseFieldKey(%q): %v", name, err)
		}
	}
	if _, err := ParseFieldKey("disk"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestValueFromBytes(t *testing.T) {
	for _, v := range []Value{Description("Running"), Memory(42.5), CPU(0.25), Timestamp(-7)} {
		got, err := ValueFromBytes(v.Key(), v.Bytes())
		if err != nil {
			t.Fatalf("ValueFromBytes(%s): %v", v.Key(), err)
		}
		if got != v {
			t.Errorf("ValueFromBytes(%s) = %v, want %v", v.Key(), got, v)
		}
	}
	if _, err := ValueFromBytes(FieldCPU, []byte{1, 2}); err == nil {
		t.Error("expected error for short numeric value")
	}
}

func TestNewEventLastValueWins(t *testing.T) {
	e := NewEventAt(time.Unix(10, 0), "x", KindProcess, Description("a"), Description("b"))
	if d, _ := e.Description(); d != "b" {
		t.Errorf("Description = %q, want b", d)
	}
	if e.Timestamp != 10 {
		t.Errorf("Timestamp = %d, want 10", e.Timestamp)
	}
	if _, ok := e.CPU(); ok {
		t.Error("expected no CPU field")
	}
}

func TestEventAge(t *testing.T) {
	tests := []struct {
		name    string
		stamped time.Time
		now     time.Time
		want    time.Duration
	}{
		{"WholeSeconds", time.Unix(100, 0), time.Unix(103, 0), 3 * time.Second},
		{"SubSecond", time.Unix(100, 999_000_000), time.Unix(101, 1_000_000), 2 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEventAt(tt.stamped, "x", KindProcess)
			if got := e.Age(tt.now); got != tt.want {
				t.Errorf("Age = %v, want %v", got, tt.want)
			}
		})
	}

	// Events decoded from JSON carry only whole seconds.
	e := &Event{Timestamp: 100}
	if got := e.Age(time.Unix(103, 500)); got != 3*time.Second {
		t.Errorf("Age without ReceivedAt = %v, want 3s", got)
	}
}

func TestIsDoneStatus(t *testing.T) {
	for _, s := range []string{"done", "DONE", "Done"} {
		if !IsDoneStatus(s) {
			t.Errorf("IsDoneStatus(%q) = false", s)
		}
	}
	if (SocketMessage{Title: "x", Status: "done soon"}).IsDone() {
		t.Error("expected 'done soon' not to be the sentinel")
	}
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(Message{Title: "backup", Kind: KindSocket})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != KindSocket {
		t.Errorf("Kind = %v, want socket", got.Kind)
	}
}

func TestEventJSON(t *testing.T) {
	e := NewEventAt(time.Unix(42, 0), "usage", KindHardwareUsage, CPU(12.5), Memory(40), Description("host"))

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got struct {
		Title     string         `json:"title"`
		Kind      string         `json:"kind"`
		Timestamp int64          `json:"timestamp"`
		Fields    map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != "usage" || got.Kind != "hw_usage" || got.Timestamp != 42 {
		t.Errorf("header = %+v", got)
	}
	if got.Fields["cpu"] != 12.5 || got.Fields["memory"] != 40.0 || got.Fields["description"] != "host" {
		t.Errorf("fields = %v", got.Fields)
	}
}

func TestEventUnmarshalJSON(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"title":"usage","kind":"hw_usage","timestamp":42,"fields":{"cpu":12.5,"memory":40,"description":"host","timestamp":7}}`), &e)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Title != "usage" || e.Kind != KindHardwareUsage || e.Timestamp != 42 {
		t.Errorf("header = %+v", e)
	}
	if v, _ := e.CPU(); v != 12.5 {
		t.Errorf("CPU = %v, want 12.5", v)
	}
	if v, _ := e.Memory(); v != 40 {
		t.Errorf("Memory = %v, want 40", v)
	}
	if v, _ := e.Description(); v != "host" {
		t.Errorf("Description = %q, want host", v)
	}
	if v, _ := e.TimestampField(); v != 7 {
		t.Errorf("TimestampField = %d, want 7", v)
	}

	for _, bad := range []string{
		`{"title":"x","kind":"socket","fields":{"colour":"red"}}`,
		`{"title":"x","kind":"socket","fields":{"cpu":"high"}}`,
		`{"title":"x","kind":"nope"}`,
	} {
		if err := json.Unmarshal([]byte(bad), &e); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", bad)
		}
	}
}
