package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func newTestConsumer(reader *fakeReader) (*Consumer, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	return &Consumer{reader: reader, logger: logger, maxRetries: 2}, hook
}

func TestConsumer_CommitsAfterHandling(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	consumer, _ := newTestConsumer(reader)
	ctx, cancel := context.WithCancel(context.Background())

	var seen []int64
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(_ context.Context, msg kafka.Message) error {
			seen = append(seen, msg.Offset)
			if len(seen) == 2 {
				cancel()
			}
			return nil
		})
	}()

	require.NoError(t, <-done)
	assert.Equal(t, []int64{1, 2}, seen)
	assert.Equal(t, []int64{1, 2}, reader.commits())
}

func TestConsumer_RetriesThenDrops(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 7}}}
	consumer, hook := newTestConsumer(reader)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(context.Context, kafka.Message) error {
			calls++
			return errors.New("smtp down")
		})
	}()

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, calls)
	assert.Equal(t, []int64{7}, reader.commits())
	assert.Equal(t, "message dropped after retries", hook.LastEntry().Message)
}

func TestConsumer_RetrySucceeds(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 3}}}
	consumer, hook := newTestConsumer(reader)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := consumer.handleWithRetry(ctx, kafka.Message{Offset: 3}, func(context.Context, kafka.Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Empty(t, hook.AllEntries())
}
