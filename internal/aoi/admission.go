package aoi

import "time"

// admit пытается перенести сущность с положительным enterCount в entered.
// Если ресурсы не готовы или транспорт не в мире, сущность паркуется в шлюз.
func (e *Engine) admit(rec *record) {
	if rec.container == ContainerEntered {
		return
	}
	if !rec.entity.CheckPrerequisites() {
		e.log.Debug("сущность %d ждёт загрузки ресурсов", rec.id)
		e.prereq.park(e.registry, rec)
		return
	}
	e.admitPrerequisitesReady(rec)
}

// admitPrerequisitesReady шаги 3-4 допуска: проверка транспорта и вход в мир
func (e *Engine) admitPrerequisitesReady(rec *record) {
	if rec.vehicleID != NullEntityID && !e.registry.isEntered(rec.vehicleID) {
		e.log.Debug("сущность %d ждёт транспорт %d", rec.id, rec.vehicleID)
		e.vehicles.park(e.registry, rec)
		return
	}
	e.enterWorld(rec, false)
}

// enterWorld переносит запись в entered, вызывает хук входа и проигрывает
// накопленные сообщения в порядке поступления
func (e *Engine) enterWorld(rec *record, isRestore bool) {
	e.registry.move(rec, ContainerEntered)
	rec.entity.EnterWorld(rec.spaceID, rec.vehicleID, isRestore)
	e.metrics.admitted()

	msgs := e.pending.Take(rec.id)
	for _, msg := range msgs {
		e.deliver(rec, msg)
	}
	if len(msgs) > 0 {
		e.log.Debug("сущность %d вошла в мир, доставлено %d отложенных сообщений", rec.id, len(msgs))
	}
}

// removeFromWorld выводит запись из entered в cached. Пассажиры, ехавшие на
// ней, тоже покидают мир и ждут транспорт в шлюзе.
func (e *Engine) removeFromWorld(rec *record, isTeleport bool) {
	if rec.container != ContainerEntered {
		return
	}
	e.parkPassengers(rec.id)
	rec.entity.LeaveWorld(isTeleport)
	e.registry.move(rec, ContainerCached)
}

func (e *Engine) parkPassengers(vehicleID EntityID) {
	for _, id := range e.registry.ids(ContainerEntered) {
		p := e.registry.get(id)
		if p == nil || p.container != ContainerEntered || p.vehicleID != vehicleID || p.id == vehicleID {
			continue
		}
		e.log.Debug("пассажир %d покидает мир вместе с транспортом %d", p.id, vehicleID)
		e.removeFromWorld(p, false)
		e.vehicles.park(e.registry, p)
	}
}

// destroy отпускает запись из арены и уничтожает handle
func (e *Engine) destroy(rec *record) {
	id := rec.id
	if e.registry.get(id) != rec {
		return
	}
	e.registry.remove(rec)
	if d, ok := rec.entity.(Destroyer); ok {
		d.Destroy()
	}
	if id == e.playerID {
		e.playerID = NullEntityID
	}
	e.metrics.destroyed()
	e.log.Debug("сущность %d уничтожена", id)
}

// Tick сначала выполняет отложенные вызовы, затем опрашивает оба шлюза
// и после этого тикает каждую сущность в мире.
func (e *Engine) Tick(now, last time.Time) {
	if e.busy {
		e.log.Warn("⚠️ Tick вызван из колбэка сущности, пропущен")
		return
	}
	e.now = now

	calls := e.deferred
	e.deferred = nil
	for _, c := range calls {
		e.run(c.kind, c.fn)
	}

	e.run(kindTick, func() {
		e.prereq.drain(e.registry, func(rec *record) {
			if rec.entity.CheckPrerequisites() {
				e.admitPrerequisitesReady(rec)
			}
		})
		e.vehicles.drain(e.registry, func(rec *record) {
			if rec.vehicleID == NullEntityID || e.registry.isEntered(rec.vehicleID) {
				e.enterWorld(rec, false)
			}
		})

		for _, id := range e.registry.ids(ContainerEntered) {
			if rec := e.registry.get(id); rec != nil && rec.container == ContainerEntered {
				rec.entity.Tick(now, last)
			}
		}
	})
}
