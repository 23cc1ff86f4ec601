package keyword

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

func TestProcessor_AlwaysAvailable(t *testing.T) {
	p := New(Config{})
	assert.True(t, p.IsAvailable(context.Background()))
	require.NoError(t, p.Load(context.Background()))
}

func TestProcessor_Extract_FindsLocationAndCharacter(t *testing.T) {
	p := New(Config{Name: "keyword", Weight: 0.4, Threshold: 0.15, PriorityRank: 5})
	chapter := &model.Chapter{
		ID: "c1",
		Content: "The old castle stood silent on the hill. " +
			"She was tall, with dark hair and tired eyes.",
	}

	out, err := p.Extract(context.Background(), chapter)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	var sawLocation, sawCharacter bool
	for _, d := range out {
		switch d.Type {
		case model.TypeLocation:
			sawLocation = true
		case model.TypeCharacter:
			sawCharacter = true
		}
		assert.GreaterOrEqual(t, d.Confidence, 0.15)
		assert.LessOrEqual(t, d.Confidence, 0.9)
	}
	assert.True(t, sawLocation, "expected a LOCATION hit from 'castle'/'hill'")
	assert.True(t, sawCharacter, "expected a CHARACTER hit from 'she was'")
}

func TestProcessor_Extract_EmptyChapterYieldsNoDescriptions(t *testing.T) {
	p := New(Config{})
	out, err := p.Extract(context.Background(), &model.Chapter{Content: "   "})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestProcessor_Extract_NoKeywordsYieldsNoDescriptions(t *testing.T) {
	p := New(Config{})
	out, err := p.Extract(context.Background(), &model.Chapter{Content: "Time passed slowly between them."})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewFromProcessorConfig_BuildsWeightedProcessor(t *testing.T) {
	cfg := processors.Config{
		Type:         "keyword",
		Enabled:      true,
		Weight:       0.3,
		Threshold:    0.2,
		PriorityRank: 10,
	}
	proc, err := NewFromProcessorConfig("keyword", cfg)
	require.NoError(t, err)

	w, ok := proc.(processors.Weighted)
	require.True(t, ok)
	assert.Equal(t, 0.3, w.Weight())
}
