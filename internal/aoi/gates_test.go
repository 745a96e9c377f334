package aoi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateRecord(reg *EntityRegistry, id EntityID) *record {
	ready := true
	return reg.insert(id, &fakeEntity{id: id, j: &journal{}, ready: &ready, filter: &fakeFilter{}}, ContainerCached)
}

func TestGateDrainSkipsDuplicatesAndStaleIDs(t *testing.T) {
	reg := newEntityRegistry()
	g := newPrerequisiteGate()

	a := newGateRecord(reg, 1)
	b := newGateRecord(reg, 2)
	c := newGateRecord(reg, 3)
	g.park(reg, a)
	g.park(reg, b)
	g.park(reg, a)
	g.park(reg, c)

	// 2 уничтожена, 3 уже ушла из шлюза
	reg.remove(b)
	reg.move(c, ContainerEntered)

	var tried []EntityID
	g.drain(reg, func(rec *record) {
		tried = append(tried, rec.id)
	})
	assert.Equal(t, []EntityID{1}, tried)
	assert.Equal(t, []EntityID{1}, g.queue, "не покинувшая шлюз запись остаётся в очереди")

	g.drain(reg, func(rec *record) {
		reg.move(rec, ContainerEntered)
	})
	assert.Empty(t, g.queue)
	assert.Equal(t, 2, reg.Count(ContainerEntered))
}

func TestGateDrainKeepsRecordsParkedDuringDrain(t *testing.T) {
	reg := newEntityRegistry()
	g := newVehicleDependencyGate()

	a := newGateRecord(reg, 1)
	b := newGateRecord(reg, 2)
	g.park(reg, a)

	g.drain(reg, func(rec *record) {
		reg.move(rec, ContainerEntered)
		g.park(reg, b)
	})
	assert.Equal(t, []EntityID{2}, g.queue)
	assert.Equal(t, ContainerVehicle, b.container)
}

func TestGateCompact(t *testing.T) {
	reg := newEntityRegistry()
	g := newPrerequisiteGate()

	a := newGateRecord(reg, 1)
	b := newGateRecord(reg, 2)
	g.park(reg, a)
	g.park(reg, b)
	g.park(reg, b)
	reg.remove(a)

	g.compact(reg)
	assert.Equal(t, []EntityID{2}, g.queue)
}

func TestRegistryCountsFollowTags(t *testing.T) {
	reg := newEntityRegistry()
	a := newGateRecord(reg, 5)
	newGateRecord(reg, 3)

	reg.move(a, ContainerEntered)
	assert.Equal(t, 1, reg.Count(ContainerEntered))
	assert.Equal(t, 1, reg.Count(ContainerCached))
	assert.Equal(t, []EntityID{3, 5}, reg.all())

	reg.remove(a)
	reg.remove(a)
	assert.Zero(t, reg.Count(ContainerEntered))
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, ContainerNone, a.container)
}

func TestLedgerAdjustErasesAtNeutral(t *testing.T) {
	l := newUnknownLedger()

	rec, erased := l.Adjust(7, -1)
	require.False(t, erased)
	assert.Equal(t, -1, rec.Count)

	_, erased = l.Adjust(7, 1)
	assert.True(t, erased)
	_, ok := l.Get(7)
	assert.False(t, ok)
	assert.Zero(t, l.Len())
}

func TestLedgerRetain(t *testing.T) {
	l := newUnknownLedger()
	l.Adjust(1, 1)
	l.Adjust(2, 1)
	l.StoreMove(3, MoveSample{SpaceID: 4})

	l.Retain(func(id EntityID) bool { return id == 3 })
	assert.Equal(t, 1, l.Len())
	rec, ok := l.Get(3)
	require.True(t, ok)
	assert.True(t, rec.HasMove)
	assert.Equal(t, SpaceID(4), rec.moveSample().SpaceID)
}

func TestPendingQueueOrderAndAccounting(t *testing.T) {
	q := newPendingMessageQueue()
	q.Push(PendingMessage{EntityID: 1, Kind: PendingProperties, Payload: []byte("a")})
	q.Push(PendingMessage{EntityID: 2, Kind: PendingMethod, MessageID: 4})
	q.Push(PendingMessage{EntityID: 1, Kind: PendingProperty, MessageID: 9, Payload: []byte("b")})

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, q.LenFor(1))

	msgs := q.Take(1)
	require.Len(t, msgs, 2)
	assert.Equal(t, PendingProperties, msgs[0].Kind)
	assert.Equal(t, PendingProperty, msgs[1].Kind)
	assert.Equal(t, "property", msgs[1].Kind.String())
	assert.Nil(t, q.Take(1))

	assert.Equal(t, 1, q.Clear())
	assert.Zero(t, q.Len())
}
