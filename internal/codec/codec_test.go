package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alfredjeanlab/statusd/internal/model"
)

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name  string
		event *model.Event
	}{
		{"NoFields", model.NewEvent("timestamp", model.KindTimestamp)},
		{"Description", model.NewEvent("backup", model.KindSocket, model.Description("running"))},
		{"Usage", model.NewEvent("usage", model.KindHardwareUsage, model.CPU(12.5), model.Memory(63.25))},
		{"Timestamp", model.NewEvent("timestamp", model.KindTimestamp, model.Timestamp(1700000000))},
		{"NegativeTimestamp", model.NewEvent("t", model.KindTimestamp, model.Timestamp(-42))},
		{"SpecialFloats", model.NewEvent("usage", model.KindHardwareUsage, model.CPU(math.Inf(1)), model.Memory(-0.0))},
		{"Separators", model.NewEvent(`a|b\c`, model.KindProcess, model.Description(`x=y|z\`))},
		{"Unicode", model.NewEvent("sauvegarde", model.KindSocket, model.Description("en cours ✓"))},
		{"AllFields", model.NewEvent("all", model.KindProcess,
			model.Description("Running"), model.Memory(1), model.CPU(2), model.Timestamp(3))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(Encode(tc.event))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Title != tc.event.Title {
				t.Errorf("Title = %q, want %q", got.Title, tc.event.Title)
			}
			if got.Kind != tc.event.Kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tc.event.Kind)
			}
			if len(got.Fields) != len(tc.event.Fields) {
				t.Fatalf("got %d fields, want %d", len(got.Fields), len(tc.event.Fields))
			}
			for key, want := range tc.event.Fields {
				v, ok := got.Fields[key]
				if !ok {
					t.Fatalf("field %s missing", key)
				}
				if !bytes.Equal(v.Bytes(), want.Bytes()) {
					t.Errorf("field %s = %v, want %v", key, v.Bytes(), want.Bytes())
				}
			}
		})
	}
}

func TestEncodeFormat(t *testing.T) {
	e := model.NewEvent("usage", model.KindHardwareUsage, model.Memory(0), model.Description("hi"))
	want := "usage|2|description=hi|memory=[0,0,0,0,0,0,0,0]"
	if got := string(Encode(e)); got != want {
		t.Errorf("Encode = %q, want %q", got, want)
	}
}

func TestDecodeRestampsTimestamp(t *testing.T) {
	sent := model.NewEventAt(time.Unix(100, 0), "x", model.KindProcess)
	now := time.Unix(5000, 0)
	got, err := DecodeAt(Encode(sent), now)
	if err != nil {
		t.Fatalf("DecodeAt: %v", err)
	}
	if got.Timestamp != 5000 {
		t.Errorf("Timestamp = %d, want 5000", got.Timestamp)
	}
}

func TestDecodeCaseInsensitiveKeys(t *testing.T) {
	got, err := Decode([]byte("backup|0|DESCRIPTION=running|Cpu=[0,0,0,0,0,0,240,63]"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d, _ := got.Description(); d != "running" {
		t.Errorf("Description = %q, want running", d)
	}
	if c, _ := got.CPU(); c != 1 {
		t.Errorf("CPU = %v, want 1", c)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"TitleOnly", "backup"},
		{"BadKind", "backup|x"},
		{"UnknownKind", "backup|9"},
		{"NegativeKind", "backup|-1"},
		{"UnknownKey", "backup|0|colour=red"},
		{"MissingEquals", "backup|0|description"},
		{"DuplicateKey", "backup|0|description=a|description=b"},
		{"UnbracketedNumber", "usage|2|cpu=12.5"},
		{"ShortNumber", "usage|2|cpu=[1,2,3]"},
		{"ByteOverflow", "usage|2|cpu=[0,0,0,0,0,0,0,256]"},
		{"TrailingEscape", `backup|0|description=a\`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.input))
			if err == nil {
				t.Fatalf("expected error, got event %+v", got)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T: %v", err, err)
			}
			if got != nil {
				t.Errorf("expected nil event on error, got %+v", got)
			}
		})
	}
}

func TestDecodeDescriptionWithEquals(t *testing.T) {
	got, err := Decode([]byte("cfg|0|description=a=b=c"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d, _ := got.Description(); d != "a=b=c" {
		t.Errorf("Description = %q, want %q", d, "a=b=c")
	}
}

func TestEmptyTitleRoundTrips(t *testing.T) {
	data := Encode(model.NewEvent("", model.KindProcess, model.Description("Running")))
	if string(data) != "|1|description=Running" {
		t.Fatalf("Encode = %q", data)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(%q): %v", data, err)
	}
	if got.Title != "" || got.Kind != model.KindProcess {
		t.Errorf("got title %q kind %v", got.Title, got.Kind)
	}
	if d, _ := got.Description(); d != "Running" {
		t.Errorf("Description = %q, want Running", d)
	}
}
