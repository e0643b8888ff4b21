package generate

import (
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// TurnsFromMessages converts stored messages into collaborator turns,
// dropping anything with an unrecognized role.
func TurnsFromMessages(msgs []*conversation.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		if !m.Role.Valid() {
			log.Warn().Int64("message_id", int64(m.ID)).Str("role", string(m.Role)).
				Msg("skipping message with invalid role")
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// TrimHistory keeps the most recent maxPairs exchanges (two turns per
// pair), dropping the oldest turns first.
func TrimHistory(turns []Turn, maxPairs int) []Turn {
	if maxPairs <= 0 {
		return nil
	}
	limit := maxPairs * 2
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}
