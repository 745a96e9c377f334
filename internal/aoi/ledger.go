package aoi

import (
	"time"

	"github.com/annel0/aoi-client/internal/vec"
)

// UnknownRecord трафик для id, по которому ещё не пришёл create
type UnknownRecord struct {
	Count     int // баланс enter/leave, может быть отрицательным
	SpaceID   SpaceID
	VehicleID EntityID

	// Ранний move, принятый до create
	HasMove       bool
	Position      vec.Vec3Float
	PositionError vec.Vec3Float
	Direction     vec.Vec3Float
	Time          time.Time
}

// moveSample собирает сохранённый move обратно в вход фильтра
func (r *UnknownRecord) moveSample() MoveSample {
	return MoveSample{
		Time:          r.Time,
		SpaceID:       r.SpaceID,
		VehicleID:     r.VehicleID,
		Position:      r.Position,
		PositionError: r.PositionError,
		Direction:     r.Direction,
	}
}

// UnknownLedger учитывает enter/leave и последнее известное состояние
// для ещё не материализованных id. Записи создаются лениво.
type UnknownLedger struct {
	records map[EntityID]*UnknownRecord
}

func newUnknownLedger() *UnknownLedger {
	return &UnknownLedger{records: make(map[EntityID]*UnknownRecord)}
}

// Get возвращает запись без создания
func (l *UnknownLedger) Get(id EntityID) (*UnknownRecord, bool) {
	r, ok := l.records[id]
	return r, ok
}

// Adjust меняет баланс на delta. Запись удаляется, когда баланс вернулся к нулю;
// в этом случае возвращается erased=true.
func (l *UnknownLedger) Adjust(id EntityID, delta int) (rec *UnknownRecord, erased bool) {
	rec, ok := l.records[id]
	if !ok {
		rec = &UnknownRecord{}
		l.records[id] = rec
	}
	rec.Count += delta
	if rec.Count == 0 {
		delete(l.records, id)
		return rec, true
	}
	return rec, false
}

// StoreMove запоминает ранний move для id без handle
func (l *UnknownLedger) StoreMove(id EntityID, s MoveSample) {
	rec, ok := l.records[id]
	if !ok {
		rec = &UnknownRecord{}
		l.records[id] = rec
	}
	rec.HasMove = true
	rec.SpaceID = s.SpaceID
	rec.VehicleID = s.VehicleID
	rec.Position = s.Position
	rec.PositionError = s.PositionError
	rec.Direction = s.Direction
	rec.Time = s.Time
}

// Remove удаляет запись, если она есть
func (l *UnknownLedger) Remove(id EntityID) {
	delete(l.records, id)
}

// Retain оставляет только записи, для которых keep вернул true
func (l *UnknownLedger) Retain(keep func(EntityID) bool) {
	for id := range l.records {
		if !keep(id) {
			delete(l.records, id)
		}
	}
}

func (l *UnknownLedger) Len() int { return len(l.records) }
