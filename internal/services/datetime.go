package services

import (
	"context"
	"time"

	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/model"
)

// TimestampTitle is the title of every datetime event.
const TimestampTitle = "timestamp"

// DateTimeService publishes the current unix time.
type DateTimeService struct {
	bus Publisher
	now func() time.Time
}

// NewDateTimeService creates the service. now defaults to time.Now.
func NewDateTimeService(bus Publisher, now func() time.Time) *DateTimeService {
	if now == nil {
		now = time.Now
	}
	return &DateTimeService{bus: bus, now: now}
}

func (d *DateTimeService) Poll(context.Context) {
	now := d.now()
	event := model.NewEventAt(now, TimestampTitle, model.KindTimestamp, model.Timestamp(now.Unix()))
	d.bus.Publish(events.TopicDateTime, codec.Encode(event))
}
