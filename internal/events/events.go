package events

import "context"

// Bus topics, one per producer.
const (
	TopicProcess  = "process_watcher"
	TopicHwUsage  = "hw_usage"
	TopicDateTime = "datetime_timestamp"
	TopicSocket   = "socket"
)

// Topics lists every producer topic.
var Topics = []string{TopicProcess, TopicHwUsage, TopicDateTime, TopicSocket}

// Publisher sends encoded payloads to an external transport.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Subscriber receives encoded payloads from an external transport.
type Subscriber interface {
	// Subscribe delivers messages on the returned channel. Call the returned
	// cancel function to unsubscribe and close the channel.
	Subscribe(pattern string) (<-chan Message, func(), error)
	Close() error
}

// Message is a payload received from an external transport.
type Message struct {
	Topic   string
	Payload []byte
}
