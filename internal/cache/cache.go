package cache

import (
	"context"
	"time"
)

// Receipt describes one successful template send.
type Receipt struct {
	Table    string
	Row      int
	Phone    string
	Template string
	SentAt   time.Time
}

// ReceiptCache is write-only from the dispatcher's point of view: nothing reads
// it to decide whether to send.
type ReceiptCache interface {
	StoreReceipt(ctx context.Context, r Receipt) error
}
