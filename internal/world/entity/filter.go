package entity

import (
	"time"

	"github.com/annel0/aoi-client/internal/aoi"
)

// filterCapacity сколько последних сэмплов хранит фильтр
const filterCapacity = 16

// AvatarFilter сглаживает позицию сущности: хранит последние сэмплы и
// отдаёт интерполированное состояние с задержкой в delay.
// Интерполяция не идёт через смену пространства или транспорта.
type AvatarFilter struct {
	delay   time.Duration
	samples [filterCapacity]aoi.MoveSample
	head    int // индекс самого старого сэмпла
	n       int
	resetAt time.Time
}

// NewAvatarFilter создает фильтр с задержкой отображения delay
func NewAvatarFilter(delay time.Duration) *AvatarFilter {
	return &AvatarFilter{delay: delay}
}

// Reset очищает историю; сэмплы старше at больше не принимаются
func (f *AvatarFilter) Reset(at time.Time) {
	f.head = 0
	f.n = 0
	f.resetAt = at
}

// Input добавляет сэмпл. Сэмплы, пришедшие не по порядку, отбрасываются.
func (f *AvatarFilter) Input(s aoi.MoveSample) {
	if s.Time.Before(f.resetAt) {
		return
	}
	if f.n > 0 && s.Time.Before(f.at(f.n-1).Time) {
		return
	}
	if f.n < filterCapacity {
		f.samples[(f.head+f.n)%filterCapacity] = s
		f.n++
		return
	}
	f.samples[f.head] = s
	f.head = (f.head + 1) % filterCapacity
}

// Flush оставляет только последний сэмпл: фильтр сразу показывает его
func (f *AvatarFilter) Flush() {
	if f.n <= 1 {
		return
	}
	latest := f.at(f.n - 1)
	f.head = 0
	f.n = 1
	f.samples[0] = latest
}

// Len число сэмплов в истории
func (f *AvatarFilter) Len() int { return f.n }

// Latest последний принятый сэмпл
func (f *AvatarFilter) Latest() (aoi.MoveSample, bool) {
	if f.n == 0 {
		return aoi.MoveSample{}, false
	}
	return f.at(f.n - 1), true
}

// Output состояние на момент now-delay
func (f *AvatarFilter) Output(now time.Time) (aoi.MoveSample, bool) {
	if f.n == 0 {
		return aoi.MoveSample{}, false
	}
	target := now.Add(-f.delay)

	first := f.at(0)
	if f.n == 1 || !target.After(first.Time) {
		return first, true
	}
	for i := 1; i < f.n; i++ {
		a, b := f.at(i-1), f.at(i)
		if target.After(b.Time) {
			continue
		}
		if a.SpaceID != b.SpaceID || a.VehicleID != b.VehicleID {
			return b, true
		}
		span := b.Time.Sub(a.Time)
		if span <= 0 {
			return b, true
		}
		t := float64(target.Sub(a.Time)) / float64(span)
		out := b
		out.Time = target
		out.Position = a.Position.Lerp(b.Position, t)
		out.Direction = a.Direction.Lerp(b.Direction, t)
		return out, true
	}
	return f.at(f.n - 1), true
}

func (f *AvatarFilter) at(i int) aoi.MoveSample {
	return f.samples[(f.head+i)%filterCapacity]
}
