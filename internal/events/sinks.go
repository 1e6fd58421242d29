package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SinkSpec describes one configured sink.
type SinkSpec struct {
	Type    string // file_jsonl | webhook
	Path    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// BuildSinks opens every sink in specs. On failure the sinks opened so far
// are closed.
func BuildSinks(specs []SinkSpec) ([]Sink, error) {
	sinks := make([]Sink, 0, len(specs))
	for i, spec := range specs {
		var (
			s   Sink
			err error
		)
		switch strings.ToLower(strings.TrimSpace(spec.Type)) {
		case "file_jsonl":
			s, err = NewFileSink(spec.Path)
		case "webhook":
			s, err = NewWebhookSink(spec.URL, spec.Headers, spec.Timeout)
		default:
			err = fmt.Errorf("unknown type %q", spec.Type)
		}
		if err != nil {
			for _, opened := range sinks {
				_ = opened.Close(context.Background())
			}
			return nil, fmt.Errorf("events sink %d: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
