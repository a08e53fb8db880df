package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/outbox"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]outbox.Record), args.Error(1)
}

func (m *MockStore) MarkSent(ctx context.Context, ids []int64) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func pendingRecords() []outbox.Record {
	return []outbox.Record{
		{ID: 7, EventID: uuid.Must(uuid.NewV4()), Topic: "marketplace.orders", Key: "order-1", Payload: json.RawMessage(`{"a":1}`), CreatedAt: time.Now()},
		{ID: 8, EventID: uuid.Must(uuid.NewV4()), Topic: "marketplace.orders", Key: "order-2", Payload: json.RawMessage(`{"a":2}`), CreatedAt: time.Now()},
	}
}

func TestRelay_Flush_PublishesAndMarks(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	relay := outbox.NewRelay(store, pub, time.Second, 10)

	records := pendingRecords()
	store.On("FetchPending", mock.Anything, 10).Return(records, nil).Once()
	pub.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 2 &&
			string(msgs[0].Key) == "order-1" &&
			msgs[0].Topic == "marketplace.orders" &&
			string(msgs[1].Value) == `{"a":2}`
	})).Return(nil).Once()
	store.On("MarkSent", mock.Anything, []int64{7, 8}).Return(nil).Once()

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRelay_Flush_PublishFailureKeepsPending(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	relay := outbox.NewRelay(store, pub, time.Second, 10)

	store.On("FetchPending", mock.Anything, 10).Return(pendingRecords(), nil).Once()
	pub.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	n, err := relay.Flush(context.Background())
	require.Error(t, err)
	require.Zero(t, n)
	store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything)
}

func TestRelay_Flush_Empty(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	relay := outbox.NewRelay(store, pub, time.Second, 10)

	store.On("FetchPending", mock.Anything, 10).Return([]outbox.Record{}, nil).Once()

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	pub.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}

func TestRelay_Run_StopsOnCancel(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	relay := outbox.NewRelay(store, pub, 5*time.Millisecond, 10)

	store.On("FetchPending", mock.Anything, 10).Return([]outbox.Record{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
