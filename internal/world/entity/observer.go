package entity

import "github.com/annel0/aoi-client/internal/logging"

// Observer получает уведомления о жизненном цикле сущностей (рендер, UI, звук)
type Observer interface {
	OnEnterWorld(e *Entity, isRestore bool)
	OnLeaveWorld(e *Entity, isTeleport bool)
	// OnPropertiesChanged names == nil означает полную замену свойств
	OnPropertiesChanged(e *Entity, names []string)
	OnMethod(e *Entity, name string, payload []byte)
	OnDestroy(e *Entity)
}

// LogObserver пишет события сущностей в лог
type LogObserver struct {
	log *logging.Logger
}

// NewLogObserver создает наблюдателя поверх логгера; nil даёт логгер компонента entity
func NewLogObserver(l *logging.Logger) *LogObserver {
	if l == nil {
		l = logging.GetComponentLogger("entity")
	}
	return &LogObserver{log: l}
}

func (o *LogObserver) OnEnterWorld(e *Entity, isRestore bool) {
	o.log.Debug("👁️ %s %d вошёл в мир (space=%d, vehicle=%d, restore=%t)",
		e.Type(), e.ID(), e.SpaceID, e.VehicleID, isRestore)
}

func (o *LogObserver) OnLeaveWorld(e *Entity, isTeleport bool) {
	o.log.Debug("👋 %s %d покинул мир (teleport=%t)", e.Type(), e.ID(), isTeleport)
}

func (o *LogObserver) OnPropertiesChanged(e *Entity, names []string) {
	if names == nil {
		o.log.Trace("%s %d: полное обновление свойств (%d ключей)", e.Type(), e.ID(), len(e.Properties))
		return
	}
	o.log.Trace("%s %d: изменены свойства %v", e.Type(), e.ID(), names)
}

func (o *LogObserver) OnMethod(e *Entity, name string, payload []byte) {
	o.log.Debug("📨 %s %d: метод %s (%d байт)", e.Type(), e.ID(), name, len(payload))
}

func (o *LogObserver) OnDestroy(e *Entity) {
	o.log.Trace("%s %d уничтожен", e.Type(), e.ID())
}
