package jobs

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// Notifier publishes posting-completed notifications onto the ledger queue.
type Notifier struct {
	client *Client
}

// NewNotifier wraps a queue client as a journals.Notifier.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// JournalPosted enqueues the notification for a committed entry.
func (n *Notifier) JournalPosted(ctx context.Context, entry journals.JournalEntry) error {
	if n == nil || n.client == nil {
		return nil
	}
	_, err := n.client.EnqueueJournalPosted(ctx, NewJournalPostedPayload(entry))
	return err
}

var _ journals.Notifier = (*Notifier)(nil)
