package chain

import "context"

// HeadSource delivers new block headers as they are produced.
type HeadSource interface {
	// SubscribeNewHeads streams headers until ctx is done or the source closes.
	SubscribeNewHeads(ctx context.Context) (<-chan Head, error)

	// Close releases the underlying connection.
	Close() error
}

// Head is a new block notification.
type Head struct {
	Number uint64
	Hash   string
}
