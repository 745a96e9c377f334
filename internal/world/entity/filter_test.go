package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/vec"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleAt(ms int, x float64) aoi.MoveSample {
	return aoi.MoveSample{
		Time:     t0.Add(time.Duration(ms) * time.Millisecond),
		SpaceID:  1,
		Position: vec.Vec3Float{X: x},
	}
}

func TestAvatarFilterInterpolatesWithDelay(t *testing.T) {
	f := NewAvatarFilter(100 * time.Millisecond)
	f.Reset(t0)
	f.Input(sampleAt(0, 0))
	f.Input(sampleAt(100, 10))

	out, ok := f.Output(t0.Add(150 * time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 5.0, out.Position.X, 1e-9)

	out, _ = f.Output(t0.Add(time.Second))
	assert.Equal(t, 10.0, out.Position.X, "после последнего сэмпла экстраполяции нет")

	out, _ = f.Output(t0)
	assert.Equal(t, 0.0, out.Position.X)
}

func TestAvatarFilterDoesNotBlendAcrossVehicleChange(t *testing.T) {
	f := NewAvatarFilter(0)
	f.Input(sampleAt(0, 0))
	boarded := sampleAt(100, 10)
	boarded.VehicleID = 7
	f.Input(boarded)

	out, ok := f.Output(t0.Add(50 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, aoi.EntityID(7), out.VehicleID)
	assert.Equal(t, 10.0, out.Position.X)
}

func TestAvatarFilterDropsOutOfOrderAndStaleSamples(t *testing.T) {
	f := NewAvatarFilter(0)
	f.Reset(t0.Add(50 * time.Millisecond))
	f.Input(sampleAt(0, 1))
	assert.Zero(t, f.Len())

	f.Input(sampleAt(100, 2))
	f.Input(sampleAt(80, 3))
	assert.Equal(t, 1, f.Len())
}

func TestAvatarFilterRingAndFlush(t *testing.T) {
	f := NewAvatarFilter(0)
	for i := 0; i < filterCapacity+5; i++ {
		f.Input(sampleAt(i*10, float64(i)))
	}
	assert.Equal(t, filterCapacity, f.Len())
	oldest, _ := f.Output(t0)
	assert.Equal(t, 5.0, oldest.Position.X)

	f.Flush()
	assert.Equal(t, 1, f.Len())
	latest, ok := f.Latest()
	require.True(t, ok)
	assert.Equal(t, float64(filterCapacity+4), latest.Position.X)

	_, ok = NewAvatarFilter(0).Output(t0)
	assert.False(t, ok)
}
