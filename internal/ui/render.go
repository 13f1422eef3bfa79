package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/alfredjeanlab/statusd/internal/model"
)

// WriteStatus prints one line per snapshot row, titles padded to a column.
func WriteStatus(w io.Writer, rows []model.Message) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Title))
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-len(r.Title))
		if r.Placeholder {
			fmt.Fprintf(w, "%s%s  %s\n", RenderOK(r.Title), pad, RenderMuted(r.Status))
			continue
		}
		fmt.Fprintf(w, "%s%s  %s\n", r.Title, pad, RenderKind(r.Kind, r.Status))
	}
}

// WriteUsage prints the newest CPU and memory sample, if any.
func WriteUsage(w io.Writer, u *model.Usage) {
	if u == nil || len(u.CPU) == 0 || len(u.Memory) == 0 {
		fmt.Fprintln(w, RenderMuted("no usage samples yet"))
		return
	}
	cpu := u.CPU[len(u.CPU)-1]
	mem := u.Memory[len(u.Memory)-1]
	fmt.Fprintf(w, "%s %5.1f%%  %s %5.1f%%  %s\n",
		RenderMuted("cpu"), cpu,
		RenderMuted("mem"), mem,
		RenderMuted(fmt.Sprintf("(%d samples)", len(u.CPU))))
}
