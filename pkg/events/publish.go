package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// PublisherManager fans events out to a set of watermill publishers.
// Subscribing a publisher under a topic means every published event is
// delivered to it on that topic. The manager stamps each outgoing
// message with a monotonically increasing sequence number so consumers
// can re-order across transports.
type PublisherManager struct {
	publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mu             sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		publishers: make(map[string][]message.Publisher),
	}
}

func (m *PublisherManager) SubscribePublisher(topic string, pub message.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers[topic] = append(m.publishers[topic], pub)
}

// Publish serializes the event and distributes it to every subscribed
// publisher. Individual publisher failures are logged and skipped so a
// broken sink cannot block the others.
func (m *PublisherManager) Publish(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("sequence_number", fmt.Sprintf("%d", m.sequenceNumber))
	msg.Metadata.Set("event_type", string(e.Type))
	m.sequenceNumber++

	for topic, pubs := range m.publishers {
		for _, pub := range pubs {
			if err := pub.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Object("event", e).Msg("failed to publish")
			}
		}
	}

	return nil
}

// PublishBlind publishes and logs instead of returning an error. Store
// and engine mutations use it so that a broken event sink never fails
// an otherwise committed operation.
func (m *PublisherManager) PublishBlind(e Event) {
	if err := m.Publish(e); err != nil {
		log.Warn().Err(err).Object("event", e).Msg("failed to publish")
	}
}
