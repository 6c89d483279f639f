package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coraxsearch/corax/internal/query"
)

type recordingStage struct {
	name     string
	seenPrev []string
	err      error
}

func (s *recordingStage) Process(_ context.Context, _ Manager, rq *Request) error {
	prev, _ := rq.Control(CtrlPreviousProcess)
	s.seenPrev = append(s.seenPrev, prev)
	return s.err
}

func TestLocal_MaintainsPreviousProcess(t *testing.T) {
	first := &recordingStage{name: "first"}
	second := &recordingStage{name: "second"}
	pl := NewLocal(nil).Append("first", first).Append("second", second)

	rq := NewRequest("rq", query.New())
	require.NoError(t, pl.Run(context.Background(), rq))

	// Each stage sees the name of the stage that ran before it.
	assert.Equal(t, []string{""}, first.seenPrev)
	assert.Equal(t, []string{"first"}, second.seenPrev)

	prev, ok := rq.Control(CtrlPreviousProcess)
	require.True(t, ok)
	assert.Equal(t, "second", prev)
}

func TestLocal_StageErrorStopsPipeline(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingStage{name: "first", err: boom}
	second := &recordingStage{name: "second"}
	pl := NewLocal(nil).Append("first", first).Append("second", second)

	rq := NewRequest("rq", query.New())
	err := pl.Run(context.Background(), rq)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, second.seenPrev)

	// The failed stage never became the previous process.
	_, ok := rq.Control(CtrlPreviousProcess)
	assert.False(t, ok)
}

func TestLocal_StageLookup(t *testing.T) {
	s := &recordingStage{name: "only"}
	pl := NewLocal(nil).Append("only", s)

	got, ok := pl.Stage("only")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = pl.Stage("missing")
	assert.False(t, ok)
}

func TestLocal_ContextCanceled(t *testing.T) {
	s := &recordingStage{name: "only"}
	pl := NewLocal(nil).Append("only", s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pl.Run(ctx, NewRequest("rq", query.New()))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.seenPrev)
}
