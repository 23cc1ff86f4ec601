package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

type fakeProcessorSource struct {
	procs []processors.Processor
}

func (f *fakeProcessorSource) Available(ctx context.Context) []processors.Processor { return f.procs }

func TestChapterAdapter_ProcessChapter_NilRecorderRunsUninstrumented(t *testing.T) {
	store := &fakeDescriptionStore{}
	images := &fakeImageDispatcher{}
	factory := NewStrategyFactory(3, 0.5, testLogger())
	p := New(factory, store, images, Config{ImageTopK: 1, ImagePriorityFloor: 0.1}, testLogger())

	source := &fakeProcessorSource{procs: []processors.Processor{
		&stubExtractor{name: "a", priorityRank: 1, available: true, out: []processors.RawDescription{
			{Type: model.TypeLocation, Content: longDescription("Beyond the hill"), Confidence: 0.9},
		}},
	}}

	adapter := NewChapterAdapter(p, source, ModeSingle, nil)
	found, err := adapter.ProcessChapter(context.Background(), &model.Book{ID: "book-1"}, &model.Chapter{ID: "chap-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	assert.Len(t, store.inserted, 1)
}

func TestChapterAdapter_ProcessChapter_UnknownModeErrors(t *testing.T) {
	store := &fakeDescriptionStore{}
	images := &fakeImageDispatcher{}
	factory := NewStrategyFactory(3, 0.5, testLogger())
	p := New(factory, store, images, Config{}, testLogger())
	source := &fakeProcessorSource{}

	adapter := NewChapterAdapter(p, source, ProcessingMode("bogus"), nil)
	_, err := adapter.ProcessChapter(context.Background(), &model.Book{ID: "book-1"}, &model.Chapter{ID: "chap-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMode)
}
