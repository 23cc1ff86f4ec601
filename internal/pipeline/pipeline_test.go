package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubExtractor struct {
	name         string
	weight       float64
	threshold    float64
	priorityRank int
	out          []processors.RawDescription
	err          error
	available    bool
}

func (s *stubExtractor) Name() string                        { return s.name }
func (s *stubExtractor) IsAvailable(ctx context.Context) bool { return s.available }
func (s *stubExtractor) Load(ctx context.Context) error       { return nil }
func (s *stubExtractor) Extract(ctx context.Context, chapter *model.Chapter) ([]processors.RawDescription, error) {
	return s.out, s.err
}
func (s *stubExtractor) Weight() float64    { return s.weight }
func (s *stubExtractor) Threshold() float64 { return s.threshold }
func (s *stubExtractor) PriorityRank() int  { return s.priorityRank }

func longDescription(prefix string) string {
	return prefix + " stood the crumbling stone tower overlooking the silent valley below, its walls worn smooth by centuries of wind and rain, a solemn witness to ages long past."
}

func TestSingleStrategy_FallsBackOnError(t *testing.T) {
	s := &singleStrategy{logger: testLogger()}
	procs := []processors.Processor{
		&stubExtractor{name: "a", err: errors.New("boom"), priorityRank: 1},
		&stubExtractor{name: "b", priorityRank: 2, out: []processors.RawDescription{{Type: model.TypeLocation, Content: longDescription("Beyond the hill"), Confidence: 0.8}}},
	}

	out, err := s.Run(context.Background(), &model.Chapter{}, procs)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestParallelStrategy_MergesAllProcessors(t *testing.T) {
	s := &parallelStrategy{maxConcurrent: 2, logger: testLogger()}
	procs := []processors.Processor{
		&stubExtractor{name: "a", out: []processors.RawDescription{{Type: model.TypeLocation, Content: "x"}}},
		&stubExtractor{name: "b", out: []processors.RawDescription{{Type: model.TypeObject, Content: "y"}}},
	}

	out, err := s.Run(context.Background(), &model.Chapter{}, procs)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestSequentialStrategy_SkipsFailingProcessors(t *testing.T) {
	s := &sequentialStrategy{logger: testLogger()}
	procs := []processors.Processor{
		&stubExtractor{name: "a", err: errors.New("down")},
		&stubExtractor{name: "b", out: []processors.RawDescription{{Type: model.TypeAction, Content: "z"}}},
	}

	out, err := s.Run(context.Background(), &model.Chapter{}, procs)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestStrategyFactory_CachesInstances(t *testing.T) {
	f := NewStrategyFactory(3, 0.5, testLogger())

	a, err := f.Get(ModeSingle)
	require.NoError(t, err)
	b, err := f.Get(ModeSingle)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestStrategyFactory_UnknownModeErrors(t *testing.T) {
	f := NewStrategyFactory(3, 0.5, testLogger())
	_, err := f.Get(ProcessingMode("bogus"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestAdaptiveStrategy_DelegatesByComplexity(t *testing.T) {
	f := NewStrategyFactory(3, 0.5, testLogger())
	adaptive, err := f.Get(ModeAdaptive)
	require.NoError(t, err)

	procs := []processors.Processor{
		&stubExtractor{name: "a", out: []processors.RawDescription{{Type: model.TypeLocation, Content: "x"}}},
	}

	simple := &model.Chapter{Content: "The cat sat."}
	out, err := adaptive.Run(context.Background(), simple, procs)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestNormalizeType_PassesThroughUnifiedTypes(t *testing.T) {
	typ := normalizeType(model.TypeLocation, "anything")
	assert.Equal(t, model.TypeLocation, typ)
}

func TestNormalizeType_MapsAlias(t *testing.T) {
	typ := normalizeType(model.DescriptionType("PER"), "anything")
	assert.Equal(t, model.TypeCharacter, typ)
}

func TestNormalizeType_FallsBackToKeywordInference(t *testing.T) {
	typ := normalizeType(model.DescriptionType("unknown_tag"), "She was tall with dark hair and tired eyes.")
	assert.Equal(t, model.TypeCharacter, typ)
}

func TestNormalizeType_FallsBackToOtherWhenNoInferencePossible(t *testing.T) {
	typ := normalizeType(model.DescriptionType("unknown_tag"), "Time passed quietly between them.")
	assert.Equal(t, model.TypeOther, typ)
}

func TestPassesFilter_RejectsShortContent(t *testing.T) {
	assert.False(t, passesFilter("too short", 0.9))
}

func TestPassesFilter_RejectsLowConfidence(t *testing.T) {
	assert.False(t, passesFilter(longDescription("Beyond the hill"), 0.1))
}

func TestPassesFilter_AcceptsQualifyingContent(t *testing.T) {
	assert.True(t, passesFilter(longDescription("Beyond the hill"), 0.8))
}

func TestDedupe_KeepsHighestPriorityAndEarliestOnTie(t *testing.T) {
	candidates := []scored{
		{content: "a crumbling stone tower by the river", charStart: 10, priority: 0.6},
		{content: "a crumbling stone tower by the river bank", charStart: 0, priority: 0.6},
		{content: "an entirely different passage about something else with enough words in it", charStart: 200, priority: 0.4},
	}
	out := dedupe(candidates)
	require.Len(t, out, 2)

	var keptTower bool
	for _, c := range out {
		if c.charStart == 0 {
			keptTower = true
		}
		assert.NotEqual(t, 10, c.charStart, "lower-priority/later duplicate should not survive")
	}
	assert.True(t, keptTower)
}

func TestPriorityScore_AppliesTypeWeightAndLiteraryBoost(t *testing.T) {
	low := priorityScore(0.5, model.TypeAction, 0.2)
	high := priorityScore(0.5, model.TypeLocation, 0.9)
	assert.Less(t, low, high)
}

type fakeDescriptionStore struct {
	inserted []*model.Description
}

func (f *fakeDescriptionStore) InsertBatch(ctx context.Context, descs []*model.Description) error {
	f.inserted = append(f.inserted, descs...)
	return nil
}

type fakeImageDispatcher struct {
	dispatched int
}

func (f *fakeImageDispatcher) Dispatch(ctx context.Context, chapterID, descriptionID string, descType model.DescriptionType, content string, priority float64) error {
	f.dispatched++
	return nil
}

func TestPipeline_Run_PersistsAndDispatchesImages(t *testing.T) {
	store := &fakeDescriptionStore{}
	images := &fakeImageDispatcher{}
	factory := NewStrategyFactory(3, 0.5, testLogger())
	pipeline := New(factory, store, images, Config{ImageTopK: 1, ImagePriorityFloor: 0.1}, testLogger())

	procs := []processors.Processor{
		&stubExtractor{name: "a", priorityRank: 1, out: []processors.RawDescription{
			{Type: model.TypeLocation, Content: longDescription("Beyond the hill"), Confidence: 0.9},
		}},
	}

	n, err := pipeline.Run(context.Background(), ModeSingle, &model.Chapter{ID: "c1"}, procs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.inserted, 1)
	assert.Equal(t, 1, images.dispatched)
}

func TestPipeline_Run_NoDescriptionsSurviveFilter(t *testing.T) {
	store := &fakeDescriptionStore{}
	images := &fakeImageDispatcher{}
	factory := NewStrategyFactory(3, 0.5, testLogger())
	pipeline := New(factory, store, images, Config{}, testLogger())

	procs := []processors.Processor{
		&stubExtractor{name: "a", out: []processors.RawDescription{{Type: model.TypeLocation, Content: "too short", Confidence: 0.9}}},
	}

	n, err := pipeline.Run(context.Background(), ModeSingle, &model.Chapter{ID: "c1"}, procs)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, store.inserted)
	assert.Equal(t, 0, images.dispatched)
}

func TestEnsembleStrategy_VotesAcrossProcessors(t *testing.T) {
	f := NewStrategyFactory(3, 0.4, testLogger())
	strategy, err := f.Get(ModeEnsemble)
	require.NoError(t, err)

	procs := []processors.Processor{
		&stubExtractor{name: "a", weight: 0.6, priorityRank: 1, out: []processors.RawDescription{
			{Type: model.TypeLocation, Content: "a crumbling stone tower by the river", CharStart: 0, CharEnd: 37, Confidence: 0.9},
		}},
		&stubExtractor{name: "b", weight: 0.4, priorityRank: 2, out: []processors.RawDescription{
			{Type: model.TypeLocation, Content: "a crumbling stone tower by the river bank", CharStart: 0, CharEnd: 42, Confidence: 0.7},
		}},
	}

	out, err := strategy.Run(context.Background(), &model.Chapter{}, procs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].SourceCount)
}
