package memstore

import (
	"context"
	"sync"

	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
)

// BlobStore keeps media bytes in process memory; the memory storage
// driver pairs it with Store.
type BlobStore struct {
	mu      sync.RWMutex
	baseURL string
	blobs   map[string][]byte
}

var _ store.BlobStore = (*BlobStore)(nil)

func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		baseURL: baseURL,
		blobs:   make(map[string][]byte),
	}
}

func (b *BlobStore) Exists(_ context.Context, fileID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blobs[fileID]
	return ok, nil
}

func (b *BlobStore) Put(_ context.Context, fileID string, content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[fileID] = content
	return nil
}

func (b *BlobStore) URL(fileID string) string {
	return b.baseURL + "/" + fileID
}
