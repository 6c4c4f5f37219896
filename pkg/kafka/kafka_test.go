package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "DefiGuard/pkg/logger"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestProducer_PublishEncodesJSONAndHeaders(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, "snappy")

	err := p.PublishWithHeaders(context.Background(), "transfer_intents", []byte("0xa11"),
		map[string]interface{}{"amount": 100}, map[string]string{TraceHeader: "abc"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "transfer_intents", m.Topic)
	assert.Equal(t, "0xa11", string(m.Key))
	assert.JSONEq(t, `{"amount":100}`, string(m.Value))
	assert.Equal(t, "abc", ExtractTraceID(m))
}

func TestProducer_PublishBatchAndErrors(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, "snappy")

	require.NoError(t, p.PublishBatch(context.Background(), "logs", nil))
	require.NoError(t, p.PublishBatch(context.Background(), "logs", []Message{
		{Key: []byte("a"), Value: "raw"},
		{Key: []byte("b"), Value: []byte("bytes")},
	}))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "raw", string(w.msgs[0].Value))
	assert.Equal(t, "bytes", string(w.msgs[1].Value))

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), "logs", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logs")

	err = p.Publish(context.Background(), "logs", nil, func() {})
	var unsupported *json.UnsupportedTypeError
	assert.True(t, errors.As(err, &unsupported))
}

func TestHookChain_OrderAndPanicSafety(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)

	panicky := HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("boom")
	}}
	_, _, _, err = NewHookChain(panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var hookErr *HookError
	require.True(t, errors.As(err, &hookErr))
	assert.Equal(t, "ERR_PANIC", hookErr.Code)
}

func TestLoggingHook(t *testing.T) {
	h := NewLoggingHook(applogger.Nop(), time.Second)

	_, _, _, err := h.BeforeHandle(context.Background(), "pool_metrics", kafka.Message{}, nil)
	var hookErr *HookError
	require.True(t, errors.As(err, &hookErr))
	assert.Equal(t, "ERR_EMPTY", hookErr.Code)

	km := kafka.Message{Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("t-1")}}}
	ctx, _, _, err := h.BeforeHandle(context.Background(), "pool_metrics", km, []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "t-1", TraceIDFrom(ctx))
	_, ok := ctx.Value(CtxStartTime).(time.Time)
	assert.True(t, ok)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	assert.Equal(t, time.Duration(1), backoffWithJitter(1, 1, 1))
}
