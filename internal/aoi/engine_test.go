package aoi

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/aoi-client/internal/vec"
)

func TestEnterBeforeCreate(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnEnter(5, 1, 0)
	e.OnEnter(5, 1, 0)
	ur, ok := e.Unknown(5)
	require.True(t, ok)
	assert.Equal(t, 2, ur.Count)

	h.create(5, 0)
	count, ok := e.EnterCount(5)
	require.True(t, ok)
	assert.Equal(t, 2, count)
	assert.Equal(t, ContainerEntered, e.ContainerOf(5))
	_, ok = e.Unknown(5)
	assert.False(t, ok, "запись журнала должна быть поглощена create")
	assert.Contains(t, h.logs.String(), "счётчиком входов 2")

	e.OnLeave(5)
	assert.True(t, e.IsInWorld(5))
	e.OnLeave(5)
	assert.False(t, e.IsInWorld(5))
	assert.Equal(t, ContainerNone, e.ContainerOf(5))
	assert.Equal(t, []string{"enter(1,0,false)", "leave", "destroy"}, h.factory.j.eventsFor(5))
	h.requireConsistent()
}

func TestMessagesBeforeCreateReplayedOnAdmission(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnProperties(9, []byte("P1"))
	e.OnMethod(9, 7, []byte("M1"))
	h.factory.setReady(9, false)
	h.create(9, 0)

	assert.Equal(t, ContainerPrerequisites, e.ContainerOf(9))
	assert.Equal(t, 2, e.PendingFor(9))
	h.tick()
	assert.Equal(t, ContainerPrerequisites, e.ContainerOf(9))
	assert.Empty(t, h.factory.j.eventsFor(9))

	h.factory.setReady(9, true)
	h.tick()
	h.tick()

	assert.Equal(t, []string{
		"enter(1,0,false)",
		"props(P1,true)",
		"method(7,M1)",
		"tick",
		"tick",
	}, h.factory.j.eventsFor(9))
	assert.Zero(t, e.PendingFor(9))
	h.requireConsistent()
}

func TestPassengerWaitsForVehicle(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(3, 7)
	assert.Equal(t, ContainerVehicle, e.ContainerOf(3))
	h.tick()
	assert.Equal(t, ContainerVehicle, e.ContainerOf(3))

	h.create(7, 0)
	assert.True(t, e.IsInWorld(7))
	assert.Equal(t, ContainerVehicle, e.ContainerOf(3), "допуск пассажира происходит только на тике")

	h.tick()
	assert.True(t, e.IsInWorld(3))
	assert.Equal(t, []string{"enter(1,7,false)", "tick"}, h.factory.j.eventsFor(3))
	h.requireConsistent()
}

func TestLeaveBeforeEnterNeverMaterializes(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnLeave(42)
	ur, ok := e.Unknown(42)
	require.True(t, ok)
	assert.Equal(t, -1, ur.Count)

	e.OnEnter(42, 1, 0)
	_, ok = e.Unknown(42)
	assert.False(t, ok)
	assert.NotContains(t, h.factory.built, EntityID(42))
	assert.Equal(t, 0, e.Stats().Unknown)
	h.requireConsistent()
}

func TestClearAllKeepsSelfAndClientEntities(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(1, 0)
	h.create(2, 0)
	cid, err := e.CreateClientEntity(typeT, 1, 0, vec.Vec3Float{}, vec.Vec3Float{}, nil)
	require.NoError(t, err)

	// 4 ждёт ресурсы, 6 остаётся в cached с отрицательным счётчиком
	h.factory.setReady(4, false)
	h.create(4, 0)
	e.OnLeave(6)
	h.create(6, 0)
	require.Equal(t, ContainerCached, e.ContainerOf(6))

	e.OnMethod(8, 1, []byte("x"))
	e.OnEnter(10, 1, 0)

	e.ClearAll(1, true)

	assert.Equal(t, []EntityID{1, cid}, e.EnteredIDs())
	for _, id := range []EntityID{2, 4, 6} {
		assert.Equal(t, ContainerNone, e.ContainerOf(id), "id %d", id)
		assert.Contains(t, h.factory.j.eventsFor(id), "destroy")
	}
	assert.Equal(t, []string{"enter(1,0,false)", "leave", "destroy"}, h.factory.j.eventsFor(2))
	assert.Equal(t, []string{"destroy"}, h.factory.j.eventsFor(4))

	stats := e.Stats()
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Prerequisites)
	assert.Zero(t, stats.Cached)
	assert.Zero(t, stats.Unknown)
	h.requireConsistent()
}

func TestDuplicateCreateKeepsEnterCount(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.factory.setReady(5, false)
	h.create(5, 0)
	e.OnEnter(5, 1, 0)
	before, _ := e.EnterCount(5)

	h.create(5, 0)
	after, _ := e.EnterCount(5)
	assert.GreaterOrEqual(t, after, before)
	assert.Equal(t, ContainerPrerequisites, e.ContainerOf(5))
	assert.Len(t, h.factory.requests, 1, "повторный create не строит новый handle")

	h.factory.setReady(5, true)
	h.tick()
	h.create(5, 0)
	count, _ := e.EnterCount(5)
	assert.Equal(t, after, count)
	assert.Equal(t, "props(full,true)", h.factory.j.eventsFor(5)[len(h.factory.j.eventsFor(5))-1])
	h.requireConsistent()
}

func TestDuplicateCreateDiscardsStalePending(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.factory.setReady(9, false)
	h.create(9, 0)
	e.OnMethod(9, 3, []byte("old"))
	require.Equal(t, 1, e.PendingFor(9))

	h.create(9, 0)
	assert.Zero(t, e.PendingFor(9))

	h.factory.setReady(9, true)
	h.tick()
	assert.Equal(t, []string{"props(full,false)", "enter(1,0,false)", "tick"}, h.factory.j.eventsFor(9))
}

func TestLeaveToZeroRemovesImmediately(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(5, 0)
	require.True(t, e.IsInWorld(5))
	e.OnLeave(5)

	_, ok := e.Lookup(5, true)
	assert.False(t, ok)
	assert.Zero(t, e.Stats().Entered)
}

func TestLeaveWhileLoadingDestroysWithoutEnter(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.factory.setReady(5, false)
	h.create(5, 0)
	e.OnMethod(5, 1, []byte("m"))
	e.OnLeave(5)

	assert.Equal(t, ContainerNone, e.ContainerOf(5))
	assert.Zero(t, e.PendingFor(5))
	assert.Equal(t, []string{"destroy"}, h.factory.j.eventsFor(5))

	h.tick()
	h.requireConsistent()
}

func TestMessagesToEnteredAreDeliveredDirectly(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(5, 0)
	e.OnProperty(5, 2, []byte("hp"))
	e.OnMethod(5, 3, []byte("say"))
	e.OnProperties(5, []byte("all"))

	assert.Equal(t, []string{
		"enter(1,0,false)",
		"prop(2,hp)",
		"method(3,say)",
		"props(all,true)",
	}, h.factory.j.eventsFor(5))
	assert.Zero(t, e.Stats().Pending)
}

func TestPendingPayloadIsCopied(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	buf := []byte("abc")
	e.OnMethod(5, 1, buf)
	buf[0] = 'X'
	h.create(5, 0)

	assert.Equal(t, []string{"enter(1,0,false)", "method(1,abc)"}, h.factory.j.eventsFor(5))
}

func TestVehicleLeavingParksPassengers(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(7, 0)
	h.create(3, 7)
	require.True(t, e.IsInWorld(3))

	e.OnLeave(7)
	assert.Equal(t, ContainerNone, e.ContainerOf(7))
	assert.Equal(t, ContainerVehicle, e.ContainerOf(3))
	h.requireConsistent()

	h.create(7, 0)
	h.tick()
	assert.True(t, e.IsInWorld(3))
	assert.Equal(t, []string{"enter(1,7,false)", "leave", "enter(1,7,false)", "tick"}, h.factory.j.eventsFor(3))
	h.requireConsistent()
}

func TestMoveOntoAbsentVehicleParks(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(3, 0)
	e.OnMoveWithError(MoveMessage{ID: 3, SpaceID: 1, VehicleID: 8, Position: vec.Vec3Float{X: 1}})

	assert.Equal(t, ContainerVehicle, e.ContainerOf(3))
	f := h.factory.built[3].filter
	assert.Len(t, f.samples, 2)
	assert.Equal(t, EntityID(8), f.samples[1].VehicleID)

	h.create(8, 0)
	h.tick()
	assert.True(t, e.IsInWorld(3))
	h.requireConsistent()
}

func TestLocallyControlledMoveFlushesFilter(t *testing.T) {
	h := newHarness(t)
	e := h.engine
	h.factory.local[5] = true

	h.create(5, 0)
	e.OnMoveWithError(MoveMessage{ID: 5, SpaceID: 1})

	ent := h.factory.built[5]
	assert.Equal(t, 1, ent.filter.flushes)
	assert.Equal(t, 1, ent.corrections)
	assert.Empty(t, h.req.ids)
}

func TestEarlyMoveSeedsFilterAfterCreate(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnEnter(11, 1, 0)
	e.OnMoveWithError(MoveMessage{ID: 11, SpaceID: 1, Position: vec.Vec3Float{X: 5, Y: 6}})
	ur, ok := e.Unknown(11)
	require.True(t, ok)
	assert.True(t, ur.HasMove)
	assert.Equal(t, 1, ur.Count)

	h.create(11, 0)
	f := h.factory.built[11].filter
	require.Len(t, f.samples, 2)
	assert.Equal(t, vec.Vec3Float{X: 5, Y: 6}, f.samples[1].Position)
	assert.Equal(t, h.now.Add(-100*time.Millisecond), f.resets[0])
	assert.True(t, e.IsInWorld(11))
}

func TestStaleEarlyMoveIsIgnored(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnMoveWithError(MoveMessage{ID: 11, SpaceID: 1, Position: vec.Vec3Float{X: 5}})
	h.tick()
	h.tick()

	h.create(11, 0)
	assert.Len(t, h.factory.built[11].filter.samples, 1)
	count, _ := e.EnterCount(11)
	assert.Equal(t, 1, count, "запись только с move не задаёт счётчик входов")
}

func TestReentrantCallIsDeferredToNextTick(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(5, 0)
	ent := h.factory.built[5]
	ent.onTick = func() {
		ent.onTick = nil
		e.OnMethod(5, 1, []byte("later"))
	}

	h.tick()
	assert.Equal(t, []string{"enter(1,0,false)", "tick"}, h.factory.j.eventsFor(5))
	assert.Contains(t, h.logs.String(), "повторный вход")

	h.tick()
	assert.Equal(t, []string{"enter(1,0,false)", "tick", "method(1,later)", "tick"}, h.factory.j.eventsFor(5))
}

func TestSnapshotRequestedOnEnter(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnEnter(5, 1, 0)
	h.create(5, 0)
	e.OnLeave(5)
	e.OnEnter(5, 1, 0)

	assert.Equal(t, []EntityID{5, 5}, h.req.ids)
}

func TestUnknownTypeDropsCreate(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnCreate(CreateMessage{ID: 5, TypeID: 99, SpaceID: 1})
	assert.Equal(t, ContainerNone, e.ContainerOf(5))
	assert.Contains(t, h.logs.String(), "не удалось создать сущность 5")
	h.requireConsistent()
}

func TestCellPlayerCreateWithoutBaseIsDropped(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnCreate(CreateMessage{ID: 1, TypeID: CellPlayerTypeID, SpaceID: 1})
	assert.Empty(t, h.factory.requests)
	assert.Equal(t, ContainerNone, e.ContainerOf(1))
}

func TestBasePlayerLifecycle(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnBasePlayerCreate(1, typeT, []byte("base"))
	assert.Equal(t, EntityID(1), e.PlayerID())
	assert.Equal(t, ContainerCached, e.ContainerOf(1))

	e.OnEnter(1, 1, 0)
	e.OnCreate(CreateMessage{ID: 1, TypeID: CellPlayerTypeID, SpaceID: 1, Payload: []byte("cell")})
	assert.True(t, e.IsInWorld(1))
	assert.Empty(t, h.req.ids, "для игрока снимок не запрашивается")

	err := e.RestoreClient(1, 2, 0, vec.Vec3Float{X: 1}, vec.Vec3Float{}, []byte("r"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"enter(1,0,false)",
		"merge(cell)",
		"props(r,false)",
		"leave",
		"enter(2,0,true)",
	}, h.factory.j.eventsFor(1))

	err = e.RestoreClient(5, 1, 0, vec.Vec3Float{}, vec.Vec3Float{}, nil)
	assert.ErrorIs(t, err, ErrRestoreNotPlayer)

	e.OnLeave(1)
	assert.Equal(t, NullEntityID, e.PlayerID())
	h.requireConsistent()
}

func TestEntitiesResetKeepsPlayer(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	e.OnBasePlayerCreate(1, typeT, nil)
	e.OnEnter(1, 1, 0)
	h.create(2, 0)

	e.OnEntitiesReset(true)
	assert.Equal(t, []EntityID{1}, e.EnteredIDs())

	e.OnEntitiesReset(false)
	assert.Empty(t, e.EnteredIDs())
	assert.Equal(t, NullEntityID, e.PlayerID())
	h.requireConsistent()
}

func TestClientOnlyEntities(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	cid, err := e.CreateClientEntity(typeT, 1, 0, vec.Vec3Float{}, vec.Vec3Float{}, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientOnlyIDBase, cid)
	assert.True(t, e.IsClientOnly(cid))
	assert.True(t, e.IsInWorld(cid))

	e.OnEnter(cid, 1, 0)
	assert.Empty(t, h.req.ids)

	_, err = e.CreateClientEntity(99, 1, 0, vec.Vec3Float{}, vec.Vec3Float{}, nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	assert.False(t, e.DestroyClientEntity(5))
	assert.True(t, e.DestroyClientEntity(cid))
	assert.Equal(t, []string{"enter(1,0,false)", "leave", "destroy"}, h.factory.j.eventsFor(cid))
	h.requireConsistent()
}

func TestLedgerCountTracksEnterLeaveBalance(t *testing.T) {
	sequences := [][]int{
		{+1},
		{-1},
		{+1, -1},
		{-1, +1},
		{+1, +1, -1},
		{-1, -1, +1, +1},
		{+1, -1, -1, +1, +1},
	}
	for _, seq := range sequences {
		h := newHarness(t)
		e := h.engine
		balance := 0
		for _, d := range seq {
			if d > 0 {
				e.OnEnter(42, 1, 0)
			} else {
				e.OnLeave(42)
			}
			balance += d
		}
		ur, ok := e.Unknown(42)
		if balance == 0 {
			assert.False(t, ok, "sequence %v", seq)
		} else {
			require.True(t, ok, "sequence %v", seq)
			assert.Equal(t, balance, ur.Count, "sequence %v", seq)
		}
		assert.Empty(t, h.factory.built)
	}
}

func TestMetricsFollowEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := newHarness(t)
	WithMetrics(m)(h.engine)

	h.create(5, 0)
	h.create(5, 0)
	h.engine.OnLeave(5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.admissions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.destructions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.messages.WithLabelValues(kindCreate)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.anomalies.WithLabelValues("create_for_entered")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.containers.WithLabelValues(ContainerEntered.String())))
}

func TestOutOfOrderLifecycleCases(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T, h *harness)
	}{
		{
			name: "double enter on entered entity",
			run: func(t *testing.T, h *harness) {
				e := h.engine
				h.create(5, 0)
				e.OnEnter(5, 1, 0)

				count, ok := e.EnterCount(5)
				require.True(t, ok)
				assert.Equal(t, 2, count)
				assert.Equal(t, ContainerEntered, e.ContainerOf(5))
				assert.Contains(t, h.logs.String(), "повторный enter для 5")
				assert.Equal(t, []string{"enter(1,0,false)"}, h.factory.j.eventsFor(5))

				e.OnLeave(5)
				assert.True(t, e.IsInWorld(5))
			},
		},
		{
			name: "move updates gated entity and clears its vehicle",
			run: func(t *testing.T, h *harness) {
				e := h.engine
				h.create(3, 7)
				require.Equal(t, ContainerVehicle, e.ContainerOf(3))

				e.OnMoveWithError(MoveMessage{ID: 3, SpaceID: 2, VehicleID: 0, Position: vec.Vec3Float{X: 1}})
				assert.Equal(t, ContainerVehicle, e.ContainerOf(3))

				h.tick()
				assert.Equal(t, ContainerEntered, e.ContainerOf(3))
				assert.Equal(t, []string{"enter(2,0,false)", "tick"}, h.factory.j.eventsFor(3))
			},
		},
		{
			name: "move switches gated entity to another absent vehicle",
			run: func(t *testing.T, h *harness) {
				e := h.engine
				h.create(3, 7)
				e.OnMoveWithError(MoveMessage{ID: 3, SpaceID: 1, VehicleID: 8})
				h.create(7, 0)
				h.tick()
				assert.Equal(t, ContainerVehicle, e.ContainerOf(3), "ждёт новый транспорт 8")

				h.create(8, 0)
				h.tick()
				assert.Equal(t, ContainerEntered, e.ContainerOf(3))
				assert.Equal(t, "enter(1,8,false)", h.factory.j.eventsFor(3)[0])
			},
		},
		{
			name: "create after leave keeps negative count in cached",
			run: func(t *testing.T, h *harness) {
				e := h.engine
				e.OnLeave(8)
				h.create(8, 0)

				count, ok := e.EnterCount(8)
				require.True(t, ok)
				assert.Equal(t, -1, count)
				assert.Equal(t, ContainerCached, e.ContainerOf(8))
				assert.Contains(t, h.logs.String(), "счётчиком входов -1")
				h.tick()
				assert.Empty(t, h.factory.j.eventsFor(8))

				e.OnEnter(8, 1, 0)
				assert.Equal(t, ContainerCached, e.ContainerOf(8))
				e.OnEnter(8, 1, 0)
				assert.Equal(t, ContainerEntered, e.ContainerOf(8))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.run(t, h)
			h.requireConsistent()
		})
	}
}

func TestDeferredClientDestroyAfterClearAll(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	cid, err := e.CreateClientEntity(typeT, 1, 0, vec.Vec3Float{}, vec.Vec3Float{}, nil)
	require.NoError(t, err)
	ent := h.factory.built[cid]
	ent.onTick = func() {
		ent.onTick = nil
		assert.True(t, e.DestroyClientEntity(cid))
	}

	h.tick()
	assert.True(t, e.IsInWorld(cid), "уничтожение отложено до следующего тика")

	e.ClearAll(NullEntityID, false)
	h.tick()

	assert.Equal(t, []string{"enter(1,0,false)", "tick", "leave", "destroy"}, h.factory.j.eventsFor(cid))
	h.requireConsistent()
}

func TestDeferredPayloadIsCopied(t *testing.T) {
	h := newHarness(t)
	e := h.engine

	h.create(5, 0)
	buf := []byte("first")
	ent := h.factory.built[5]
	ent.onTick = func() {
		ent.onTick = nil
		e.OnMethod(5, 1, buf)
		e.OnProperties(5, buf)
		copy(buf, "reuse")
	}

	h.tick()
	h.tick()
	assert.Equal(t, []string{
		"enter(1,0,false)", "tick", "method(1,first)", "props(first,true)", "tick",
	}, h.factory.j.eventsFor(5))
}
