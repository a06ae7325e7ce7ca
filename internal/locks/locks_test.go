package locks

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *memoryLocker) Obtain(_ context.Context, key string) (Releaser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, ErrLocked
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		delete(m.held, key)
		m.mu.Unlock()
	}, nil
}

func TestNoopLockerAlwaysObtains(t *testing.T) {
	release, err := NoopLocker{}.Obtain(context.Background(), "x")
	require.NoError(t, err)
	release()
}

func TestObtainUsesInstalledLocker(t *testing.T) {
	mem := &memoryLocker{held: map[string]bool{}}
	Set(mem)
	t.Cleanup(func() { Set(NoopLocker{}) })

	key := DocumentKey("delivery_challan", 42)
	assert.Equal(t, "delivery_challan:42", key)

	release, err := Obtain(context.Background(), key)
	require.NoError(t, err)

	_, err = Obtain(context.Background(), key)
	assert.ErrorIs(t, err, ErrLocked)

	release()
	release2, err := Obtain(context.Background(), key)
	require.NoError(t, err)
	release2()
}

func TestConnectWithoutAddressKeepsNoop(t *testing.T) {
	rdb, err := Connect(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
