package video

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/media"
)

// fakeSource serves frames whose first red byte carries the frame index.
type fakeSource struct {
	total   int
	failAt  int
	failErr error

	mu     sync.Mutex
	served int
	closed int
}

func newSource(total int) *fakeSource {
	return &fakeSource{total: total, failAt: -1}
}

func (s *fakeSource) Next(ctx context.Context) (*media.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served == s.failAt {
		return nil, s.failErr
	}
	if s.served >= s.total {
		return nil, io.EOF
	}
	img := media.NewImage(2, 2)
	img.Pix[0] = uint8(s.served)
	s.served++
	return img, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// probs scores frame i with values[i], repeating the last value.
func probs(values ...float64) ScorerFunc {
	return func(_ context.Context, img *media.Image) (float64, error) {
		i := int(img.Pix[0])
		if i >= len(values) {
			i = len(values) - 1
		}
		return values[i], nil
	}
}

func TestAggregateCapsFrames(t *testing.T) {
	src := newSource(100)
	var scored atomic.Int32
	scorer := ScorerFunc(func(context.Context, *media.Image) (float64, error) {
		scored.Add(1)
		return 0.1, nil
	})

	v, err := Aggregate(context.Background(), src, scorer, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 31, v.FramesAnalyzed)
	assert.Equal(t, int32(31), scored.Load())
	assert.Equal(t, StateEarlyStop, v.Termination)
	assert.Equal(t, 30, v.Frames[len(v.Frames)-1].Index)
	assert.Equal(t, 1, src.closed)
}

func TestAggregateExactlyAtCapIsExhausted(t *testing.T) {
	v, err := Aggregate(context.Background(), newSource(31), probs(0.2), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, v.Termination)
	assert.Equal(t, 31, v.FramesAnalyzed)
}

func TestAggregateMeanAtThresholdIsFake(t *testing.T) {
	v, err := Aggregate(context.Background(), newSource(2), probs(0.9, 0.1), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 50.0, v.Confidence)
	assert.Equal(t, inference.LabelFake, v.Label)
	assert.Equal(t, StateExhausted, v.Termination)
	require.Len(t, v.Evidence, 1)
	assert.Equal(t, 0, v.Evidence[0].Index)
}

func TestSuspiciousThresholdIsInclusive(t *testing.T) {
	v, err := Aggregate(context.Background(), newSource(2), probs(0.70, 0.699999), DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, v.Frames, 2)
	assert.True(t, v.Frames[0].Suspicious)
	assert.False(t, v.Frames[1].Suspicious)
	assert.NotNil(t, v.Frames[0].Image)
	assert.Nil(t, v.Frames[1].Image, "non-suspicious pixels are dropped")
	assert.Len(t, v.Evidence, 1)
}

func TestOneStrongFrameDoesNotFlipVerdict(t *testing.T) {
	values := make([]float64, 31)
	for i := range values {
		values[i] = 0.2
	}
	values[15] = 0.99
	v, err := Aggregate(context.Background(), newSource(31), probs(values...), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, inference.LabelReal, v.Label)
	assert.Len(t, v.Evidence, 1)
	assert.Equal(t, 15, v.Evidence[0].Index)
}

func TestZeroFramesIsInvalidMedia(t *testing.T) {
	src := newSource(0)
	_, err := Aggregate(context.Background(), src, probs(0.5), DefaultPolicy())
	require.Error(t, err)
	assert.True(t, errors.Is(err, inference.ErrInvalidMedia))
	assert.Contains(t, err.Error(), NoFramesMessage)
	assert.Equal(t, 1, src.closed)
}

func TestSourceClosedOnErrors(t *testing.T) {
	t.Run("decode error", func(t *testing.T) {
		src := newSource(10)
		src.failAt, src.failErr = 3, errors.New("corrupt packet")
		_, err := Aggregate(context.Background(), src, probs(0.5), DefaultPolicy())
		require.Error(t, err)
		assert.True(t, errors.Is(err, inference.ErrInvalidMedia))
		assert.Equal(t, 1, src.closed)
	})

	t.Run("scorer error", func(t *testing.T) {
		src := newSource(10)
		boom := errors.New("model unavailable")
		scorer := ScorerFunc(func(context.Context, *media.Image) (float64, error) {
			return 0, boom
		})
		_, err := Aggregate(context.Background(), src, scorer, DefaultPolicy())
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, src.closed)
	})

	t.Run("cancelled", func(t *testing.T) {
		src := newSource(10)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Aggregate(ctx, src, probs(0.5), DefaultPolicy())
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, src.closed)
	})
}

func TestConcurrentPreservesOrder(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(i%10) / 10
	}
	p := DefaultPolicy()
	p.Workers = 4

	src := newSource(40)
	v, err := Aggregate(context.Background(), src, probs(values...), p)
	require.NoError(t, err)
	require.Len(t, v.Frames, 31)
	for i, f := range v.Frames {
		assert.Equal(t, i, f.Index)
		assert.InDelta(t, values[i]*100, f.Confidence, 1e-9)
	}
	for i := 1; i < len(v.Evidence); i++ {
		assert.Less(t, v.Evidence[i-1].Index, v.Evidence[i].Index)
	}
	assert.Equal(t, StateEarlyStop, v.Termination)
	assert.Equal(t, 1, src.closed)

	seq, err := Aggregate(context.Background(), newSource(40), probs(values...), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, seq.Confidence, v.Confidence)
	assert.Equal(t, seq.Label, v.Label)
}

func TestConcurrentScorerError(t *testing.T) {
	p := DefaultPolicy()
	p.Workers = 3
	boom := errors.New("boom")
	src := newSource(20)
	scorer := ScorerFunc(func(_ context.Context, img *media.Image) (float64, error) {
		if img.Pix[0] == 5 {
			return 0, boom
		}
		return 0.3, nil
	})
	_, err := Aggregate(context.Background(), src, scorer, p)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.closed)
}

func TestDedupeEvidence(t *testing.T) {
	p := DefaultPolicy()
	p.DedupeEvidence = true
	src := newSource(5)
	v, err := Aggregate(context.Background(), src, probs(0.9), p)
	require.NoError(t, err)
	assert.Equal(t, 5, v.FramesAnalyzed, "dedupe never changes the frame count")
	assert.Len(t, v.Frames, 5)
	assert.Len(t, v.Evidence, 1, "near-identical frames collapse to one")
	assert.Equal(t, 90.0, v.Confidence)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "early_stop", StateEarlyStop.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
}
