package service

import (
	"context"
	"earninja_backend/internal/music"
	"earninja_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareIntervals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	prepare := NewPrepareService(env.Intervals, env.Renderer)

	report, err := prepare.PrepareIntervals(ctx, 4, 4, 3)
	require.NoError(t, err)

	perType := len(music.IntervalNames)
	instances := len(music.IntervalTypes) * perType * music.NumNotesInOctave
	assert.Equal(t, len(music.IntervalTypes)*perType, report.Intervals)
	assert.Equal(t, instances, report.InstancesCreated)
	assert.Equal(t, int64(instances), report.Rendered)
	assert.Len(t, env.Renderer.rendered(), instances)

	// nothing new to create the second time
	report, err = prepare.PrepareIntervals(ctx, 4, 4, 3)
	require.NoError(t, err)
	assert.Zero(t, report.InstancesCreated)
}

func TestPrepareIntervalsRendersAudio(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	prepare := NewPrepareService(env.Intervals, &InlineRenderer{Audio: env.Audio})

	report, err := prepare.PrepareIntervals(ctx, 0, 0, 2)
	require.NoError(t, err)
	assert.Zero(t, report.Failed)

	missing, err := env.Intervals.ListInstancesWithoutAudio(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestPrepareIntervalsValidatesRange(t *testing.T) {
	prepare := NewPrepareService(nil, nil)

	_, err := prepare.PrepareIntervals(context.Background(), 5, 4, 1)
	assert.ErrorIs(t, err, util.ErrInvalidOctaveRange)

	_, err = prepare.PrepareIntervals(context.Background(), 0, 9, 1)
	assert.ErrorIs(t, err, util.ErrOctaveOutOfRange)
}
