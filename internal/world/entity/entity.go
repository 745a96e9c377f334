package entity

import (
	"encoding/json"
	"time"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/logging"
	"github.com/annel0/aoi-client/internal/vec"
)

// AssetLoader асинхронная загрузка ресурсов типа сущности
type AssetLoader interface {
	// Request запускает загрузку ещё не загруженных ресурсов
	Request(names []string)
	// Ready все ресурсы загружены
	Ready(names []string) bool
}

// Entity клиентское представление серверной (или клиентской) сущности.
// Свойства приходят JSON-объектом; позиция берётся из AvatarFilter на тике.
type Entity struct {
	id   aoi.EntityID
	desc *TypeDescriptor
	kind aoi.DataKind

	Properties map[string]interface{}
	Position   vec.Vec3Float
	Direction  vec.Vec3Float
	SpaceID    aoi.SpaceID
	VehicleID  aoi.EntityID
	InWorld    bool

	// Correction локальная поправка физики, ждущая подтверждения сервера
	Correction vec.Vec3Float

	local     bool
	speed     float64
	destroyed bool

	filter   *AvatarFilter
	assets   AssetLoader
	observer Observer
	log      *logging.Logger
}

// ID идентификатор сущности
func (e *Entity) ID() aoi.EntityID { return e.id }

// Type тип сущности
func (e *Entity) Type() EntityType { return e.desc.Type }

// Kind источник данных сущности
func (e *Entity) Kind() aoi.DataKind { return e.kind }

// Speed скорость по последнему тику, м/с
func (e *Entity) Speed() float64 { return e.speed }

// Destroyed handle уже уничтожен движком
func (e *Entity) Destroyed() bool { return e.destroyed }

// CheckPrerequisites ресурсы типа загружены
func (e *Entity) CheckPrerequisites() bool {
	if e.assets == nil || len(e.desc.Assets) == 0 {
		return true
	}
	return e.assets.Ready(e.desc.Assets)
}

func (e *Entity) EnterWorld(spaceID aoi.SpaceID, vehicleID aoi.EntityID, isRestore bool) {
	e.SpaceID = spaceID
	e.VehicleID = vehicleID
	e.InWorld = true
	if s, ok := e.filter.Latest(); ok {
		e.Position = s.Position
		e.Direction = s.Direction
	}
	e.observer.OnEnterWorld(e, isRestore)
}

func (e *Entity) LeaveWorld(isTeleport bool) {
	e.InWorld = false
	e.speed = 0
	e.observer.OnLeaveWorld(e, isTeleport)
}

// Tick переносит выход фильтра в позицию и обновляет поведение
func (e *Entity) Tick(now, last time.Time) {
	dt := now.Sub(last).Seconds()
	if s, ok := e.filter.Output(now); ok {
		prev := e.Position
		e.Position = s.Position.Add(e.Correction)
		e.Direction = s.Direction
		e.SpaceID = s.SpaceID
		e.VehicleID = s.VehicleID
		if dt > 0 {
			e.speed = prev.DistanceTo(e.Position) / dt
		}
	}
	if e.desc.Behavior != nil {
		e.desc.Behavior.Update(e, dt)
	}
}

// UpdateProperties полная замена свойств
func (e *Entity) UpdateProperties(payload []byte, shouldNotify bool) {
	props, ok := e.decodeObject(payload)
	if !ok {
		return
	}
	e.Properties = props
	if e.desc.Behavior != nil {
		e.desc.Behavior.OnSpawn(e)
	}
	if shouldNotify {
		e.observer.OnPropertiesChanged(e, nil)
	}
}

// MergeCellData добавляет cell-половину к сущности, созданной по base-данным
func (e *Entity) MergeCellData(payload []byte) {
	props, ok := e.decodeObject(payload)
	if !ok {
		return
	}
	names := make([]string, 0, len(props))
	for k, v := range props {
		e.Properties[k] = v
		names = append(names, k)
	}
	e.kind = aoi.DataKindCell
	if e.InWorld {
		e.observer.OnPropertiesChanged(e, names)
	}
}

func (e *Entity) HandleProperty(messageID uint16, payload []byte) {
	name, ok := e.desc.propertyName(messageID)
	if !ok {
		e.log.Warn("⚠️ %s %d: неизвестное свойство %d", e.desc.Name, e.id, messageID)
		return
	}
	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		e.log.Warn("⚠️ %s %d: некорректное значение свойства %s: %v", e.desc.Name, e.id, name, err)
		return
	}
	e.Properties[name] = value
	e.observer.OnPropertiesChanged(e, []string{name})
}

func (e *Entity) HandleMethod(messageID uint16, payload []byte) {
	name, ok := e.desc.methodName(messageID)
	if !ok {
		e.log.Warn("⚠️ %s %d: неизвестный метод %d", e.desc.Name, e.id, messageID)
		return
	}
	e.observer.OnMethod(e, name, payload)
}

func (e *Entity) Filter() aoi.MovementFilter { return e.filter }

// AvatarFilter фильтр движения с доступом к выходу
func (e *Entity) AvatarFilter() *AvatarFilter { return e.filter }

func (e *Entity) IsControlledLocally() bool { return e.local }

func (e *Entity) ClearPhysicsCorrection() { e.Correction = vec.Vec3Float{} }

// Destroy вызывается движком при освобождении handle
func (e *Entity) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.InWorld = false
	e.observer.OnDestroy(e)
}

func (e *Entity) decodeObject(payload []byte) (map[string]interface{}, bool) {
	props := make(map[string]interface{})
	if len(payload) == 0 {
		return props, true
	}
	if err := json.Unmarshal(payload, &props); err != nil {
		e.log.Warn("⚠️ %s %d: некорректный набор свойств: %v", e.desc.Name, e.id, err)
		return nil, false
	}
	if props == nil {
		// null в JSON обнуляет карту: считаем его пустым набором
		props = make(map[string]interface{})
	}
	return props, true
}

func (e *Entity) setDefault(key string, value interface{}) {
	if _, ok := e.Properties[key]; !ok {
		e.Properties[key] = value
	}
}
