package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nguyentranbao-ct/chat-gateway/internal/events"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol/loopback"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDialer counts dials and can fail the first n of them.
type countingDialer struct {
	inner *loopback.Dialer

	mu    sync.Mutex
	dials int
	fail  int
}

func (d *countingDialer) Dial(ctx context.Context, teamID string, account *models.AccountInfo) (protocol.Conn, error) {
	d.mu.Lock()
	d.dials++
	shouldFail := d.fail > 0
	if shouldFail {
		d.fail--
	}
	d.mu.Unlock()
	if shouldFail {
		return nil, errors.New("dial refused")
	}
	return d.inner.Dial(ctx, teamID, account)
}

func (d *countingDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newRegistryEnv(dialer protocol.Dialer, st *memstore.Store) *Registry {
	return NewRegistry(SessionDeps{
		Store:  st,
		Blobs:  memstore.NewBlobStore("http://blobs.local"),
		Dialer: dialer,
		Broker: events.NewBroker(nil),
	})
}

func TestRegistryMemoizesCreation(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{inner: loopback.NewDialer()}
	r := newRegistryEnv(dialer, memstore.New())
	defer r.RemoveAll()

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := 0; i < len(sessions); i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.GetOrCreate(ctx, "team-1")
			require.NoError(t, err)
			sessions[i] = s
		}()
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, dialer.dialCount())
}

func TestRegistryRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{inner: loopback.NewDialer(), fail: 1}
	r := newRegistryEnv(dialer, memstore.New())
	defer r.RemoveAll()

	_, err := r.GetOrCreate(ctx, "team-1")
	require.Error(t, err)

	s, err := r.GetOrCreate(ctx, "team-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestRegistryGetWithoutCreate(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{inner: loopback.NewDialer()}
	r := newRegistryEnv(dialer, memstore.New())
	defer r.RemoveAll()

	_, ok := r.Get("team-1")
	assert.False(t, ok)

	created, err := r.GetOrCreate(ctx, "team-1")
	require.NoError(t, err)

	got, ok := r.Get("team-1")
	require.True(t, ok)
	assert.Same(t, created, got)
}

func TestRegistryRemove(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{inner: loopback.NewDialer()}
	r := newRegistryEnv(dialer, memstore.New())

	_, err := r.GetOrCreate(ctx, "team-1")
	require.NoError(t, err)

	r.Remove("team-1")
	_, ok := r.Get("team-1")
	assert.False(t, ok)

	// a fresh session is created afterwards
	_, err = r.GetOrCreate(ctx, "team-1")
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dialCount())
	r.RemoveAll()
}

func TestRegistryWarmUp(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.SaveAccount(ctx, "team-1", &models.AccountInfo{ID: "team-1", AutoReconnect: true}))
	require.NoError(t, st.SaveAccount(ctx, "team-2", &models.AccountInfo{ID: "team-2", AutoReconnect: false}))
	require.NoError(t, st.SaveAccount(ctx, "team-3", &models.AccountInfo{ID: "team-3", AutoReconnect: true}))

	dialer := &countingDialer{inner: loopback.NewDialer()}
	r := newRegistryEnv(dialer, st)
	defer r.RemoveAll()

	require.NoError(t, r.WarmUp(ctx))

	assert.Eventually(t, func() bool {
		_, ok1 := r.Get("team-1")
		_, ok3 := r.Get("team-3")
		return ok1 && ok3
	}, time.Second, 10*time.Millisecond)
	_, ok := r.Get("team-2")
	assert.False(t, ok)
}
