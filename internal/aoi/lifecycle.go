package aoi

import (
	"fmt"

	"github.com/annel0/aoi-client/internal/vec"
)

// OnBasePlayerCreate создаёт локального игрока по base-данным.
// Игрок остаётся в cached до прихода cell-данных и enter.
func (e *Engine) OnBasePlayerCreate(id EntityID, typeID TypeID, payload []byte) {
	payload = e.hold(payload)
	e.run(kindBasePlayer, func() { e.onBasePlayerCreate(id, typeID, payload) })
}

func (e *Engine) onBasePlayerCreate(id EntityID, typeID TypeID, payload []byte) {
	if e.playerID != NullEntityID && e.playerID != id {
		e.anomaly("player_replaced", "⚠️ base-игрок %d заменяет прежнего игрока %d", id, e.playerID)
	}

	if rec := e.registry.get(id); rec != nil {
		e.anomaly("duplicate_base_player", "⚠️ повторные base-данные для игрока %d", id)
		rec.entity.UpdateProperties(payload, rec.container == ContainerEntered)
		e.playerID = id
		return
	}

	enterCount := 0
	if ur, ok := e.ledger.Get(id); ok {
		enterCount = ur.Count
	}

	ent, err := e.factory.Construct(ConstructRequest{
		TypeID:     typeID,
		ID:         id,
		EnterCount: enterCount,
		Payload:    payload,
		Kind:       DataKindBase,
	})
	if err != nil || ent == nil {
		e.metrics.droppedCreate()
		e.log.Error("❌ не удалось создать base-игрока %d типа %d: %v", id, typeID, err)
		return
	}

	rec := e.registry.insert(id, ent, ContainerCached)
	rec.enterCount = enterCount
	if ur, ok := e.ledger.Get(id); ok {
		rec.spaceID = ur.SpaceID
		rec.vehicleID = ur.VehicleID
	}
	e.ledger.Remove(id)
	e.playerID = id
	e.log.Info("🧍 создан base-игрок %d типа %d", id, typeID)

	if rec.enterCount > 0 {
		e.admit(rec)
	}
}

// RestoreClient восстанавливает состояние локального игрока.
// Поддерживается только для игрока; любой другой id даёт ErrRestoreNotPlayer.
func (e *Engine) RestoreClient(id EntityID, spaceID SpaceID, vehicleID EntityID, pos, dir vec.Vec3Float, payload []byte) error {
	if e.busy {
		return ErrReentrant
	}
	if id == NullEntityID || id != e.playerID {
		e.log.Error("❌ restore для %d, но локальный игрок %d", id, e.playerID)
		return fmt.Errorf("%w: id %d, player %d", ErrRestoreNotPlayer, id, e.playerID)
	}
	rec := e.registry.get(id)
	if rec == nil {
		return fmt.Errorf("%w: player %d is not materialized", ErrRestoreNotPlayer, id)
	}

	e.run(kindRestore, func() {
		rec.entity.UpdateProperties(payload, false)
		e.seedFilter(rec.entity, spaceID, vehicleID, pos, dir)

		wasInWorld := rec.container == ContainerEntered
		rec.spaceID = spaceID
		rec.vehicleID = vehicleID
		if !wasInWorld {
			return
		}

		e.removeFromWorld(rec, false)
		if vehicleID != NullEntityID && !e.registry.isEntered(vehicleID) {
			e.vehicles.park(e.registry, rec)
			return
		}
		e.enterWorld(rec, true)
	})
	return nil
}

// OnEntitiesReset серверный сброс сущностей
func (e *Engine) OnEntitiesReset(keepPlayerOnBase bool) {
	keep := NullEntityID
	if keepPlayerOnBase {
		keep = e.playerID
	}
	e.run(kindReset, func() { e.clearAll(keep, true) })
}

// ClearAll массовый сброс: при отключении и по серверному reset.
// Сущности keepSelfID и, при keepClientOnly, клиентские сохраняются
// вместе с записанной парой пространство/транспорт.
func (e *Engine) ClearAll(keepSelfID EntityID, keepClientOnly bool) {
	e.run(kindClearAll, func() { e.clearAll(keepSelfID, keepClientOnly) })
}

func (e *Engine) clearAll(keepSelfID EntityID, keepClientOnly bool) {
	keep := func(id EntityID) bool {
		if keepSelfID != NullEntityID && id == keepSelfID {
			return true
		}
		return keepClientOnly && e.IsClientOnly(id)
	}

	removed := 0
	for _, id := range e.registry.ids(ContainerEntered) {
		if keep(id) {
			continue
		}
		rec := e.registry.get(id)
		rec.entity.LeaveWorld(false)
		e.destroy(rec)
		removed++
	}

	for _, id := range e.registry.all() {
		rec := e.registry.get(id)
		if rec == nil || rec.container == ContainerEntered || keep(id) {
			continue
		}
		e.destroy(rec)
		removed++
	}

	// Сохранённые пассажиры уничтоженного транспорта ждут его в шлюзе
	for _, id := range e.registry.ids(ContainerEntered) {
		rec := e.registry.get(id)
		if rec.vehicleID != NullEntityID && !e.registry.isEntered(rec.vehicleID) {
			e.removeFromWorld(rec, false)
			e.vehicles.park(e.registry, rec)
		}
	}

	e.prereq.compact(e.registry)
	e.vehicles.compact(e.registry)
	dropped := e.pending.Clear()
	e.ledger.Retain(keep)

	e.log.Info("🧹 сброс сущностей: удалено %d, отброшено %d отложенных сообщений, осталось %d",
		removed, dropped, e.registry.Len())
}

// CreateClientEntity создаёт сущность, существующую только на клиенте.
// Id выделяется из клиентского диапазона, допуск идёт через обычные шлюзы.
func (e *Engine) CreateClientEntity(typeID TypeID, spaceID SpaceID, vehicleID EntityID, pos, dir vec.Vec3Float, payload []byte) (EntityID, error) {
	if e.busy {
		return NullEntityID, ErrReentrant
	}

	id, err := e.allocateClientID()
	if err != nil {
		return NullEntityID, err
	}

	ent, err := e.factory.Construct(ConstructRequest{
		TypeID:     typeID,
		ID:         id,
		SpaceID:    spaceID,
		VehicleID:  vehicleID,
		Position:   pos,
		Direction:  dir,
		EnterCount: 1,
		Payload:    payload,
		Kind:       DataKindClientOnly,
	})
	if err != nil {
		return NullEntityID, fmt.Errorf("construct client entity type %d: %w", typeID, err)
	}
	if ent == nil {
		return NullEntityID, fmt.Errorf("construct client entity type %d: %w", typeID, ErrUnknownType)
	}

	e.run(kindClientNew, func() {
		rec := e.registry.insert(id, ent, ContainerCached)
		rec.enterCount = 1
		rec.spaceID = spaceID
		rec.vehicleID = vehicleID
		e.seedFilter(ent, spaceID, vehicleID, pos, dir)
		e.admit(rec)
	})
	return id, nil
}

func (e *Engine) allocateClientID() (EntityID, error) {
	for e.nextClientID > 0 {
		id := e.nextClientID
		e.nextClientID++
		if e.registry.get(id) == nil {
			return id, nil
		}
	}
	return NullEntityID, ErrClientIDsExhausted
}

// DestroyClientEntity уничтожает клиентскую сущность. Серверные id игнорируются.
func (e *Engine) DestroyClientEntity(id EntityID) bool {
	if !e.IsClientOnly(id) {
		e.log.Warn("⚠️ DestroyClientEntity для серверного id %d", id)
		return false
	}
	if e.registry.get(id) == nil {
		return false
	}
	e.run(kindClientDel, func() {
		// при отложенном вызове сущность могла уйти через ClearAll
		rec := e.registry.get(id)
		if rec == nil {
			return
		}
		e.removeFromWorld(rec, false)
		e.destroy(rec)
	})
	return true
}
