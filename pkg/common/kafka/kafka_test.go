package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		f.cancel()
		return kafka.Message{}, context.Canceled
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestConsumeRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		messages: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}},
		cancel:   cancel,
	}
	consumer := &Consumer{reader: reader, topic: "patho-reports", retryBase: time.Millisecond, retryMax: time.Millisecond}

	var handled []int64
	failures := 2
	err := consumer.Consume(ctx, func(ctx context.Context, message kafka.Message) error {
		handled = append(handled, message.Offset)
		if message.Offset == 2 && failures > 0 {
			failures--
			return errors.New("sink unavailable")
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1, 2, 2, 2, 3}, handled)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsumeNeverCommitsPastUnhandledMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		messages: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}},
		cancel:   cancel,
	}
	consumer := &Consumer{reader: reader, topic: "patho-reports", retryBase: time.Millisecond, retryMax: 4 * time.Millisecond}

	attempts := 0
	var handled []int64
	err := consumer.Consume(ctx, func(ctx context.Context, message kafka.Message) error {
		handled = append(handled, message.Offset)
		if message.Offset != 2 {
			return nil
		}
		attempts++
		if attempts == 5 {
			cancel()
		}
		return errors.New("sink unavailable")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, attempts)
	assert.NotContains(t, handled, int64(3))
	assert.Equal(t, []int64{1}, reader.committed)
	require.Len(t, reader.messages, 1)
	assert.Equal(t, int64(3), reader.messages[0].Offset)
}

func TestProducerTopic(t *testing.T) {
	producer := NewProducer([]string{"localhost:9092"}, "patho-fhir-rejects")
	defer producer.Close()
	assert.Equal(t, "patho-fhir-rejects", producer.Topic())
}

func TestPublishCarriesKeyAndHeaders(t *testing.T) {
	writer := &fakeWriter{}
	producer := &Producer{writer: writer, topic: "patho-fhir-bundles"}

	err := producer.Publish(context.Background(), "H/20223/00001", []byte(`{}`), map[string]string{"bundle-id": "b1"})
	require.NoError(t, err)
	require.Len(t, writer.written, 1)

	msg := writer.written[0]
	assert.Equal(t, "H/20223/00001", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "bundle-id", msg.Headers[0].Key)
	assert.Equal(t, "b1", string(msg.Headers[0].Value))
}

func TestPublishReturnsWriterError(t *testing.T) {
	producer := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, topic: "t"}
	err := producer.Publish(context.Background(), "k", nil, nil)
	assert.EqualError(t, err, "broker down")
}
