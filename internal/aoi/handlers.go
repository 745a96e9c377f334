package aoi

// Виды сообщений для метрик и логов
const (
	kindCreate     = "create"
	kindBasePlayer = "base_player_create"
	kindEnter      = "enter"
	kindLeave      = "leave"
	kindProperties = "properties"
	kindProperty   = "property"
	kindMethod     = "method"
	kindMove       = "move"
	kindRestore    = "restore_client"
	kindReset      = "entities_reset"
	kindClearAll   = "clear_all"
	kindClientNew  = "client_entity_create"
	kindClientDel  = "client_entity_destroy"
	kindTick       = "tick"
)

// OnCreate полное состояние сущности
func (e *Engine) OnCreate(msg CreateMessage) {
	msg.Payload = e.hold(msg.Payload)
	e.run(kindCreate, func() { e.onCreate(msg) })
}

func (e *Engine) onCreate(msg CreateMessage) {
	id := msg.ID
	rec := e.registry.get(id)

	if rec != nil {
		switch rec.container {
		case ContainerEntered:
			// Сущность уже в мире: просто обновление свойств, счётчики не трогаем
			if msg.TypeID == CellPlayerTypeID {
				rec.entity.MergeCellData(msg.Payload)
				break
			}
			e.anomaly("create_for_entered", "⚠️ create для сущности %d, которая уже в мире", id)
			rec.entity.UpdateProperties(msg.Payload, true)
		default:
			// Повторный create, пока сущность ждёт ресурсы или транспорт
			if msg.TypeID == CellPlayerTypeID {
				rec.entity.MergeCellData(msg.Payload)
			} else {
				rec.entity.UpdateProperties(msg.Payload, false)
			}
			rec.spaceID = msg.SpaceID
			rec.vehicleID = msg.VehicleID
		}
		// create заменяет накопленные дельты
		if n := e.pending.Discard(id); n > 0 {
			e.log.Debug("create для %d отбросил %d устаревших сообщений", id, n)
		}
		e.ledger.Remove(id)
	} else {
		if msg.TypeID == CellPlayerTypeID {
			e.metrics.droppedCreate()
			e.log.Error("❌ cell-данные игрока %d без base-части, create отброшен", id)
			return
		}

		enterCount := 1
		var early *UnknownRecord
		if ur, ok := e.ledger.Get(id); ok {
			early = ur
			// Нулевой баланс бывает только у записи с одним ранним move
			if ur.Count != 0 {
				enterCount = ur.Count
			}
			if enterCount != 1 {
				e.anomaly("enter_count", "⚠️ create для %d со счётчиком входов %d (ожидался 1)", id, enterCount)
			}
		}

		ent, err := e.factory.Construct(ConstructRequest{
			TypeID:     msg.TypeID,
			ID:         id,
			SpaceID:    msg.SpaceID,
			VehicleID:  msg.VehicleID,
			Position:   msg.Position,
			Direction:  msg.Direction,
			EnterCount: enterCount,
			Payload:    msg.Payload,
			Kind:       DataKindCell,
		})
		if err != nil || ent == nil {
			e.metrics.droppedCreate()
			e.log.Error("❌ не удалось создать сущность %d типа %d: %v", id, msg.TypeID, err)
			return
		}

		rec = e.registry.insert(id, ent, ContainerCached)
		rec.enterCount = enterCount
		rec.spaceID = msg.SpaceID
		rec.vehicleID = msg.VehicleID
		e.ledger.Remove(id)

		e.seedFilter(ent, msg.SpaceID, msg.VehicleID, msg.Position, msg.Direction)
		if early != nil && early.HasMove && early.Time.After(e.now.Add(-e.cfg.TickInterval)) {
			if f := ent.Filter(); f != nil {
				f.Input(early.moveSample())
			}
		}
		e.log.Debug("создана сущность %d типа %d, enterCount=%d", id, msg.TypeID, enterCount)
		if rec.enterCount > 0 {
			e.admit(rec)
		}
		return
	}

	e.seedFilter(rec.entity, msg.SpaceID, msg.VehicleID, msg.Position, msg.Direction)
	if rec.enterCount > 0 {
		e.admit(rec)
	}
}

// OnEnter сущность вошла в AoI
func (e *Engine) OnEnter(id EntityID, spaceID SpaceID, vehicleID EntityID) {
	e.run(kindEnter, func() { e.onEnter(id, spaceID, vehicleID) })
}

func (e *Engine) onEnter(id EntityID, spaceID SpaceID, vehicleID EntityID) {
	rec := e.registry.get(id)

	switch {
	case rec == nil:
		ur, erased := e.ledger.Adjust(id, 1)
		if erased {
			// enter и leave пришли в обратном порядке и взаимно погасились
			e.pending.Discard(id)
			e.log.Debug("enter для %d погасил ранний leave", id)
		} else {
			ur.SpaceID = spaceID
			ur.VehicleID = vehicleID
		}

	case rec.container == ContainerEntered:
		rec.enterCount++
		e.anomaly("double_enter", "⚠️ повторный enter для %d без leave, enterCount=%d", id, rec.enterCount)

	default:
		prev := rec.enterCount
		rec.enterCount++
		rec.spaceID = spaceID
		rec.vehicleID = vehicleID
		if rec.enterCount != 1 {
			e.anomaly("enter_count", "⚠️ enter для %d: enterCount=%d (пропущен leave?)", id, rec.enterCount)
		}
		if prev <= 0 && rec.enterCount > 0 {
			e.admit(rec)
		}
	}

	e.requestSnapshot(id, rec)
}

// requestSnapshot просит у сервера свежие свойства, кроме клиентских,
// игрока и сущностей, управляемых локально
func (e *Engine) requestSnapshot(id EntityID, rec *record) {
	if e.requester == nil || e.IsClientOnly(id) || id == e.playerID {
		return
	}
	if rec != nil && rec.entity.IsControlledLocally() {
		return
	}
	e.requester.RequestEntityUpdate(id)
}

// OnLeave сущность покинула AoI
func (e *Engine) OnLeave(id EntityID) {
	e.run(kindLeave, func() { e.onLeave(id) })
}

func (e *Engine) onLeave(id EntityID) {
	rec := e.registry.get(id)

	switch {
	case rec == nil:
		ur, erased := e.ledger.Adjust(id, -1)
		if erased {
			e.pending.Discard(id)
			return
		}
		if ur.Count < 0 {
			e.anomaly("leave_without_enter", "⚠️ leave для неизвестной сущности %d, баланс %d", id, ur.Count)
		}

	case rec.container == ContainerEntered:
		rec.enterCount--
		if rec.enterCount <= 0 {
			e.removeFromWorld(rec, false)
			e.destroy(rec)
			return
		}
		if rec.enterCount != 1 {
			e.anomaly("enter_count", "⚠️ leave для %d: enterCount=%d", id, rec.enterCount)
		}

	default:
		rec.enterCount--
		if rec.enterCount == 0 {
			// Ушла, так и не показавшись
			e.destroy(rec)
			e.pending.Discard(id)
			e.ledger.Remove(id)
			return
		}
		if rec.enterCount < 0 {
			e.anomaly("leave_without_enter", "⚠️ leave для %d: enterCount=%d", id, rec.enterCount)
		}
	}
}

// OnProperties полный набор свойств
func (e *Engine) OnProperties(id EntityID, payload []byte) {
	payload = e.hold(payload)
	e.run(kindProperties, func() {
		e.deliverOrQueue(PendingMessage{EntityID: id, Kind: PendingProperties, Payload: payload})
	})
}

// OnProperty одно свойство по messageID
func (e *Engine) OnProperty(id EntityID, messageID uint16, payload []byte) {
	payload = e.hold(payload)
	e.run(kindProperty, func() {
		e.deliverOrQueue(PendingMessage{EntityID: id, Kind: PendingProperty, MessageID: messageID, Payload: payload})
	})
}

// OnMethod вызов метода сущности
func (e *Engine) OnMethod(id EntityID, messageID uint16, payload []byte) {
	payload = e.hold(payload)
	e.run(kindMethod, func() {
		e.deliverOrQueue(PendingMessage{EntityID: id, Kind: PendingMethod, MessageID: messageID, Payload: payload})
	})
}

func (e *Engine) deliverOrQueue(msg PendingMessage) {
	rec := e.registry.get(msg.EntityID)
	if rec != nil && rec.container == ContainerEntered {
		e.deliver(rec, msg)
		return
	}
	e.pending.Push(msg)
}

func (e *Engine) deliver(rec *record, msg PendingMessage) {
	switch msg.Kind {
	case PendingProperties:
		rec.entity.UpdateProperties(msg.Payload, true)
	case PendingProperty:
		rec.entity.HandleProperty(msg.MessageID, msg.Payload)
	case PendingMethod:
		rec.entity.HandleMethod(msg.MessageID, msg.Payload)
	}
}

// OnMoveWithError позиция сущности с оценкой ошибки
func (e *Engine) OnMoveWithError(msg MoveMessage) {
	e.run(kindMove, func() { e.onMove(msg) })
}

func (e *Engine) onMove(msg MoveMessage) {
	sample := MoveSample{
		Time:          e.now,
		SpaceID:       msg.SpaceID,
		VehicleID:     msg.VehicleID,
		Position:      msg.Position,
		PositionError: msg.PositionError,
		Direction:     msg.Direction,
		IsVolatile:    msg.IsVolatile,
	}

	rec := e.registry.get(msg.ID)
	if rec == nil {
		e.ledger.StoreMove(msg.ID, sample)
		return
	}

	f := rec.entity.Filter()
	if f != nil {
		f.Input(sample)
	}
	if rec.entity.IsControlledLocally() {
		if f != nil {
			f.Flush()
		}
		rec.entity.ClearPhysicsCorrection()
	}

	if rec.spaceID == msg.SpaceID && rec.vehicleID == msg.VehicleID {
		return
	}
	rec.spaceID = msg.SpaceID
	rec.vehicleID = msg.VehicleID

	// Пересадка на транспорт, которого нет в мире: сущность уходит в шлюз
	if rec.container == ContainerEntered && msg.VehicleID != NullEntityID && !e.registry.isEntered(msg.VehicleID) {
		e.log.Debug("сущность %d пересела на транспорт %d вне мира, ожидание", rec.id, msg.VehicleID)
		e.removeFromWorld(rec, false)
		e.vehicles.park(e.registry, rec)
	}
}
