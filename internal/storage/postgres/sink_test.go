package postgres

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_FlushesOnBatchSize(t *testing.T) {
	var executed int32
	s := NewSink(SinkConfig{BatchSize: 3, FlushInterval: time.Hour})
	s.Start()
	defer s.Stop()

	for i := 0; i < 3; i++ {
		s.Send(WriteOp{Table: "processor_metrics", Exec: func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			return nil
		}})
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&executed) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestSink_FlushesOnInterval(t *testing.T) {
	var executed int32
	s := NewSink(SinkConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	s.Start()
	defer s.Stop()

	s.Send(WriteOp{Table: "processor_metrics", Exec: func(ctx context.Context) error {
		atomic.AddInt32(&executed, 1)
		return nil
	}})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&executed) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSink_StopFlushesRemainder(t *testing.T) {
	var executed int32
	s := NewSink(SinkConfig{BatchSize: 100, FlushInterval: time.Hour})
	s.Start()

	s.Send(WriteOp{Table: "processor_metrics", Exec: func(ctx context.Context) error {
		atomic.AddInt32(&executed, 1)
		return nil
	}})
	s.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&executed))
}
