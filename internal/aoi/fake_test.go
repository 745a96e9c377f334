package aoi

import (
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annel0/aoi-client/internal/logging"
)

const typeT TypeID = 1

// journal общий журнал колбэков всех сущностей в порядке вызова
type journal struct {
	events []string
}

func (j *journal) add(format string, args ...interface{}) {
	j.events = append(j.events, fmt.Sprintf(format, args...))
}

// eventsFor события одной сущности
func (j *journal) eventsFor(id EntityID) []string {
	prefix := fmt.Sprintf("%d:", id)
	var out []string
	for _, ev := range j.events {
		if len(ev) > len(prefix) && ev[:len(prefix)] == prefix {
			out = append(out, ev[len(prefix):])
		}
	}
	return out
}

type fakeFilter struct {
	resets  []time.Time
	samples []MoveSample
	flushes int
}

func (f *fakeFilter) Reset(at time.Time)      { f.resets = append(f.resets, at) }
func (f *fakeFilter) Input(sample MoveSample) { f.samples = append(f.samples, sample) }
func (f *fakeFilter) Flush()                  { f.flushes++ }

type fakeEntity struct {
	id          EntityID
	kind        DataKind
	j           *journal
	ready       *bool
	local       bool
	filter      *fakeFilter
	corrections int
	onTick      func()
	onEnter     func()
}

func (f *fakeEntity) ID() EntityID { return f.id }

func (f *fakeEntity) CheckPrerequisites() bool { return *f.ready }

func (f *fakeEntity) EnterWorld(spaceID SpaceID, vehicleID EntityID, isRestore bool) {
	f.j.add("%d:enter(%d,%d,%t)", f.id, spaceID, vehicleID, isRestore)
	if f.onEnter != nil {
		f.onEnter()
	}
}

func (f *fakeEntity) LeaveWorld(isTeleport bool) { f.j.add("%d:leave", f.id) }

func (f *fakeEntity) Tick(now, last time.Time) {
	f.j.add("%d:tick", f.id)
	if f.onTick != nil {
		f.onTick()
	}
}

func (f *fakeEntity) UpdateProperties(payload []byte, shouldNotify bool) {
	f.j.add("%d:props(%s,%t)", f.id, payload, shouldNotify)
}

func (f *fakeEntity) MergeCellData(payload []byte) {
	f.kind = DataKindCell
	f.j.add("%d:merge(%s)", f.id, payload)
}

func (f *fakeEntity) HandleMethod(messageID uint16, payload []byte) {
	f.j.add("%d:method(%d,%s)", f.id, messageID, payload)
}

func (f *fakeEntity) HandleProperty(messageID uint16, payload []byte) {
	f.j.add("%d:prop(%d,%s)", f.id, messageID, payload)
}

func (f *fakeEntity) Filter() MovementFilter { return f.filter }

func (f *fakeEntity) IsControlledLocally() bool { return f.local }

func (f *fakeEntity) ClearPhysicsCorrection() { f.corrections++ }

func (f *fakeEntity) Destroy() { f.j.add("%d:destroy", f.id) }

// fakeFactory знает только typeT; готовность ресурсов задаётся по id
type fakeFactory struct {
	j        *journal
	ready    map[EntityID]*bool
	local    map[EntityID]bool
	built    map[EntityID]*fakeEntity
	requests []ConstructRequest
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		j:     &journal{},
		ready: make(map[EntityID]*bool),
		local: make(map[EntityID]bool),
		built: make(map[EntityID]*fakeEntity),
	}
}

func (ff *fakeFactory) setReady(id EntityID, ready bool) {
	if p, ok := ff.ready[id]; ok {
		*p = ready
		return
	}
	ff.ready[id] = &ready
}

func (ff *fakeFactory) Construct(req ConstructRequest) (Entity, error) {
	ff.requests = append(ff.requests, req)
	if req.TypeID != typeT {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, req.TypeID)
	}
	if _, ok := ff.ready[req.ID]; !ok {
		ff.setReady(req.ID, true)
	}
	ent := &fakeEntity{
		id:     req.ID,
		kind:   req.Kind,
		j:      ff.j,
		ready:  ff.ready[req.ID],
		local:  ff.local[req.ID] || req.Kind != DataKindCell,
		filter: &fakeFilter{},
	}
	ff.built[req.ID] = ent
	return ent, nil
}

// fakeRequester записывает запросы свежих свойств
type fakeRequester struct {
	ids []EntityID
}

func (r *fakeRequester) RequestEntityUpdate(id EntityID) { r.ids = append(r.ids, id) }

type harness struct {
	t       *testing.T
	engine  *Engine
	factory *fakeFactory
	req     *fakeRequester
	logs    *bytes.Buffer
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logs := &bytes.Buffer{}
	ff := newFakeFactory()
	req := &fakeRequester{}
	e := NewEngine(ff, Config{TickInterval: 100 * time.Millisecond, DebugInvariants: true},
		WithSnapshotRequester(req),
		WithLogger(logging.NewWriterLogger("aoi", io.Writer(logs), logging.DEBUG)),
	)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = start
	return &harness{t: t, engine: e, factory: ff, req: req, logs: logs, now: start}
}

// tick продвигает время на 100ms и вызывает Engine.Tick
func (h *harness) tick() {
	last := h.now
	h.now = h.now.Add(100 * time.Millisecond)
	h.engine.Tick(h.now, last)
}

func (h *harness) create(id EntityID, vehicle EntityID) {
	h.engine.OnCreate(CreateMessage{ID: id, TypeID: typeT, SpaceID: 1, VehicleID: vehicle, Payload: []byte("full")})
}

// requireConsistent проверяет инварианты и единственность контейнера
func (h *harness) requireConsistent() {
	h.t.Helper()
	require.NoError(h.t, h.engine.CheckInvariants())
	require.NotContains(h.t, h.logs.String(), "нарушен инвариант")
}
