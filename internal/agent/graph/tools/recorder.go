package tools

import (
	"context"
	"sync"

	"github.com/Chative-analytics/server/internal/agent/model"
)

type recorderKey struct{}

// Recorder collects the structured side outputs of one turn's tool calls.
// A nil *Recorder discards everything.
type Recorder struct {
	mu        sync.Mutex
	calls     int
	artifacts []model.Artifact
	failures  []model.ToolFailure
}

// WithRecorder attaches a fresh Recorder to ctx.
func WithRecorder(ctx context.Context) (context.Context, *Recorder) {
	r := &Recorder{}
	return context.WithValue(ctx, recorderKey{}, r), r
}

func RecorderFrom(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}

func (r *Recorder) success(artifacts []model.Artifact) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.artifacts = append(r.artifacts, artifacts...)
}

func (r *Recorder) failure(f model.ToolFailure) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.failures = append(r.failures, f)
}

// Snapshot returns copies of what was recorded so far.
func (r *Recorder) Snapshot() (artifacts []model.Artifact, failures []model.ToolFailure, calls int) {
	if r == nil {
		return nil, nil, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Artifact(nil), r.artifacts...), append([]model.ToolFailure(nil), r.failures...), r.calls
}
