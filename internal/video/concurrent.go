package video

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// scoreConcurrent reads frames on the calling goroutine and scores them on
// up to p.Workers goroutines. Each worker writes only its own slot, so
// results stay in index order.
func scoreConcurrent(ctx context.Context, src FrameSource, scorer Scorer, p Policy) ([]FrameRecord, State, error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.Workers)

	frames := make([]FrameRecord, p.MaxFrames)
	n := 0
	term := StateExhausted
	var readErr error

	for {
		if n == p.MaxFrames {
			term = probeRemaining(ctx, src)
			break
		}
		img, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = frameError(n, err)
			break
		}
		idx := n
		n++
		eg.Go(func() error {
			rec, err := scoreFrame(ctx, scorer, idx, img, p)
			if err != nil {
				return err
			}
			frames[idx] = rec
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, StateStreaming, err
	}
	if readErr != nil {
		return nil, StateStreaming, readErr
	}
	return frames[:n], term, nil
}
