package sysinfo

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_Read_NeverErrors(t *testing.T) {
	s := NewSampler()
	sample, err := s.Read(context.Background())
	require.NoError(t, err)

	if runtime.GOOS != "linux" {
		assert.Zero(t, sample.MemoryPercent)
		return
	}
	assert.GreaterOrEqual(t, sample.MemoryPercent, 0.0)
	assert.LessOrEqual(t, sample.MemoryPercent, 100.0)
}

func TestSampler_PoolGate_MatchesRead(t *testing.T) {
	s := NewSampler()
	mem, cpu, err := s.PoolGate(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mem, 0.0)
	assert.GreaterOrEqual(t, cpu, 0.0)
}

func TestSampler_ReadCPU_FirstCallReturnsZero(t *testing.T) {
	s := NewSampler()
	assert.Equal(t, 0.0, s.readCPU())
}
