package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/alfredjeanlab/statusd/internal/model"
)

// Send connects to the socket at path and writes one status message.
// A status of "done" clears the title.
func Send(ctx context.Context, path string, msg model.SocketMessage) error {
	if msg.Title == "" {
		return fmt.Errorf("title is required")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if len(data) > BufferSize {
		return fmt.Errorf("message is %d bytes, limit is %d", len(data), BufferSize)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", path, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("writing to %s: %w", path, err)
	}
	return nil
}
