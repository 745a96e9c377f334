package aoi

import (
	"time"

	"github.com/annel0/aoi-client/internal/vec"
)

// Entity возможности сконструированной сущности, которыми пользуется движок.
// Ни один метод не должен синхронно вызывать Engine.
type Entity interface {
	ID() EntityID

	// CheckPrerequisites опрашивает готовность ресурсов; может запустить асинхронную загрузку
	CheckPrerequisites() bool

	// EnterWorld вызывается при переносе в entered
	EnterWorld(spaceID SpaceID, vehicleID EntityID, isRestore bool)

	// LeaveWorld вызывается при удалении из entered
	LeaveWorld(isTeleport bool)

	Tick(now, last time.Time)

	// UpdateProperties применяет полный набор свойств; shouldNotify включает колбэки наблюдателей
	UpdateProperties(payload []byte, shouldNotify bool)

	// MergeCellData объединяет cell-данные игрока с ранее созданной base-частью
	MergeCellData(payload []byte)

	HandleMethod(messageID uint16, payload []byte)
	HandleProperty(messageID uint16, payload []byte)

	// Filter фильтр движения сущности, может быть nil
	Filter() MovementFilter

	// IsControlledLocally позиция сущности задаётся клиентом
	IsControlledLocally() bool

	// ClearPhysicsCorrection сбрасывает ожидающую коррекцию физики и подавление телепорта
	ClearPhysicsCorrection()
}

// Destroyer необязательная возможность освободить ресурсы при уничтожении
type Destroyer interface {
	Destroy()
}

// MovementFilter сглаживает позиции, пришедшие от сервера
type MovementFilter interface {
	Reset(at time.Time)
	Input(sample MoveSample)
	// Flush немедленно применяет последнее значение без интерполяции
	Flush()
}

// ConstructRequest параметры создания сущности фабрикой
type ConstructRequest struct {
	TypeID     TypeID
	ID         EntityID
	SpaceID    SpaceID
	VehicleID  EntityID
	Position   vec.Vec3Float
	Direction  vec.Vec3Float
	EnterCount int
	Payload    []byte
	Kind       DataKind
	// Sister уже существующая половина той же сущности, если есть
	Sister Entity
}

// Factory создаёт типизированные сущности по id типа
type Factory interface {
	Construct(req ConstructRequest) (Entity, error)
}

// FactoryFunc адаптер функции к Factory
type FactoryFunc func(req ConstructRequest) (Entity, error)

func (f FactoryFunc) Construct(req ConstructRequest) (Entity, error) { return f(req) }

// SnapshotRequester запрашивает у сервера свежие свойства сущности.
// Реализация сама добавляет cache stamps, чтобы сервер мог ответить пустым ответом.
type SnapshotRequester interface {
	RequestEntityUpdate(id EntityID)
}
