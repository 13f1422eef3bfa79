package model

import (
	"strings"
	"time"
)

// DoneStatus is the socket status that clears a title from the active set.
const DoneStatus = "done"

// SocketMessage is the JSON payload a client writes to the ingestion socket.
type SocketMessage struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

// IsDone reports whether the message is the removal sentinel.
func (m SocketMessage) IsDone() bool {
	return IsDoneStatus(m.Status)
}

// IsDoneStatus compares s against DoneStatus case-insensitively.
func IsDoneStatus(s string) bool {
	return strings.EqualFold(s, DoneStatus)
}

// Message is one row of the status snapshot handed to renderers.
type Message struct {
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Kind        Kind      `json:"kind"`
	Placeholder bool      `json:"placeholder,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Usage is the CPU and memory history returned for charting.
type Usage struct {
	CPU    []float64 `json:"cpu"`
	Memory []float64 `json:"memory"`
}
