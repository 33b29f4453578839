package totals

import (
	"context"
	"log"

	"studytracker/internal/queue"
	"studytracker/internal/tracker"
)

// QueueNotifier publishes tracker change events to a queue.
type QueueNotifier struct {
	Queue queue.Queue
}

func (n QueueNotifier) Notify(ctx context.Context, evt tracker.ChangeEvent) error {
	msg, err := queue.NewMessage(evt.Kind, evt)
	if err != nil {
		return err
	}
	return n.Queue.Publish(ctx, msg)
}

// Consume refreshes totals for every change event until ctx is done or the
// queue closes.
func Consume(ctx context.Context, q queue.Queue, svc *Service) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != tracker.ChangeSaved && msg.Type != tracker.ChangeDeleted {
			continue
		}
		var evt tracker.ChangeEvent
		if err := msg.Decode(&evt); err != nil {
			log.Printf("drop malformed %s event: %v", msg.Type, err)
			continue
		}
		if err := svc.Refresh(ctx, evt); err != nil {
			log.Printf("totals refresh for %s failed: %v", evt.RecordID, err)
			continue
		}
	}
	return nil
}
