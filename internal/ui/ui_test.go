package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alfredjeanlab/statusd/internal/model"
)

func init() {
	ForceNoColor()
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	WriteStatus(&buf, []model.Message{
		{Title: "backup", Status: "running", Kind: model.KindSocket},
		{Title: "nvim", Status: "Running", Kind: model.KindProcess},
	})

	want := "backup  running\nnvim    Running\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteStatus() = %q, want %q", got, want)
	}
}

func TestWriteStatus_Placeholder(t *testing.T) {
	var buf bytes.Buffer
	WriteStatus(&buf, []model.Message{{Title: "All good!", Status: "Nothing happening", Placeholder: true}})

	if got := buf.String(); got != "All good!  Nothing happening\n" {
		t.Errorf("WriteStatus() = %q", got)
	}
}

func TestWriteUsage(t *testing.T) {
	tests := []struct {
		name string
		u    *model.Usage
		want string
	}{
		{"nil", nil, "no usage samples yet"},
		{"empty", &model.Usage{}, "no usage samples yet"},
		{"latest sample", &model.Usage{CPU: []float64{1, 12.34}, Memory: []float64{2, 56.7}}, "cpu  12.3%  mem  56.7%  (2 samples)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			WriteUsage(&buf, tt.u)
			if got := strings.TrimSpace(buf.String()); got != tt.want {
				t.Errorf("WriteUsage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShouldUseColor_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR should win over CLICOLOR_FORCE")
	}
}

func TestShouldUseColor_Force(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE=1 should enable color")
	}
}
