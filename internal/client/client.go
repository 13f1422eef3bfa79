// Package client talks to a running statusd over its HTTP read API and its
// gRPC health service.
package client

import (
	"context"

	"github.com/alfredjeanlab/statusd/internal/model"
)

// StatusClient is the read side of the daemon.
type StatusClient interface {
	Status(ctx context.Context) ([]model.Message, error)
	Usage(ctx context.Context) (*model.Usage, error)
	Time(ctx context.Context) (*TimeResponse, error)
	Health(ctx context.Context) (string, error)
	Close() error
}

// TimeResponse mirrors the body of GET /v1/time.
type TimeResponse struct {
	Unix      int64  `json:"unix"`
	Formatted string `json:"formatted"`
}
