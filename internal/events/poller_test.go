package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	events    []Event
	published map[int64]bool
	fetchErr  error
}

func (f *fakeStore) PendingEvents(_ context.Context, limit int) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []Event
	for _, e := range f.events {
		if !f.published[e.ID] {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkPublished(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[id] = true
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []Event
	failOn int64
}

func (f *fakePublisher) Publish(_ context.Context, e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == f.failOn {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, e)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func sampleEvents(t *testing.T, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		e, err := OrderCreated(&models.Transaction{
			TransactionID: "TXN-" + string(rune('A'+i)),
			UserID:        1,
			Items:         []models.OrderItem{{ProductID: 1, UnitPrice: 100, Quantity: 1}},
			TotalAmount:   100,
		})
		require.NoError(t, err)
		e.ID = int64(i)
		out = append(out, e)
	}
	return out
}

func TestProcessPending_PublishesAndMarks(t *testing.T) {
	store := &fakeStore{events: sampleEvents(t, 3), published: map[int64]bool{}}
	pub := &fakePublisher{}
	p := NewPoller(store, pub, time.Second, quietLogger())

	n, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, pub.sent, 3)
	assert.True(t, store.published[1] && store.published[2] && store.published[3])

	n, err = p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessPending_StopsAtFirstFailure(t *testing.T) {
	store := &fakeStore{events: sampleEvents(t, 3), published: map[int64]bool{}}
	pub := &fakePublisher{failOn: 2}
	p := NewPoller(store, pub, time.Second, quietLogger())

	n, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, store.published[1])
	assert.False(t, store.published[2])
	assert.False(t, store.published[3], "later events wait for the failed one")
}

func TestProcessPending_FetchError(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("db down"), published: map[int64]bool{}}
	p := NewPoller(store, &fakePublisher{}, time.Second, quietLogger())

	_, err := p.ProcessPending(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &fakeStore{events: sampleEvents(t, 1), published: map[int64]bool{}}
	p := NewPoller(store, &fakePublisher{}, 5*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.published[1]
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestStatusChangedPayload(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e, err := StatusChanged(models.StatusPending, &models.Transaction{
		TransactionID: "TXN-1", UserID: 4, Status: models.StatusProcessing, UpdatedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, TypeOrderStatusChanged, e.Type)
	assert.Equal(t, "TXN-1", e.AggregateID)
	assert.JSONEq(t, `{"transactionId":"TXN-1","userId":4,"from":"pending","to":"processing","changedAt":"2025-01-02T03:04:05Z"}`, string(e.Payload))
}
