package analytics

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/kafka"
)

// HandleEvent records each consumed query event into s. It lets a separate
// process aggregate the events of every searcher publishing to the topic.
func HandleEvent(s *Summary) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			return err
		}
		s.Record(event)
		return nil
	}
}
