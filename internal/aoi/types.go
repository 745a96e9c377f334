// Package aoi сводит неупорядоченный поток уведомлений сервера об области
// интереса (вход, выход, создание, свойства, методы, движение) в
// согласованный набор локальных сущностей.
//
// Engine однопоточный: все обработчики и Tick должны вызываться из одной
// горутины драйвера. Обработчик выполняется целиком до следующего сообщения.
package aoi

import (
	"errors"
	"time"

	"github.com/annel0/aoi-client/internal/vec"
)

// EntityID ключ сущности, выданный сервером или синтезированный локально
type EntityID int32

// SpaceID идентификатор пространства
type SpaceID int32

// TypeID идентификатор типа сущности для фабрики
type TypeID uint16

const (
	NullEntityID EntityID = 0
	NullSpaceID  SpaceID  = 0

	// CellPlayerTypeID помечает create, несущий cell-половину уже созданного на base игрока
	CellPlayerTypeID TypeID = 0xFFFF

	// DefaultClientOnlyIDBase первый id клиентских сущностей; серверные id всегда меньше
	DefaultClientOnlyIDBase EntityID = 1 << 30
)

var (
	// ErrUnknownType возвращается фабрикой для незарегистрированного типа
	ErrUnknownType = errors.New("unknown entity type")
	// ErrRestoreNotPlayer restore разрешён только для локального игрока
	ErrRestoreNotPlayer = errors.New("restore client is only supported for the local player")
	// ErrReentrant вызов движка из колбэка сущности во время обработки
	ErrReentrant = errors.New("reentrant call into reconciliation engine")
	// ErrClientIDsExhausted диапазон клиентских id исчерпан
	ErrClientIDsExhausted = errors.New("client-only entity id range exhausted")
)

// DataKind какая половина данных пришла в create
type DataKind uint8

const (
	DataKindCell DataKind = iota
	DataKindBase
	DataKindClientOnly
)

func (k DataKind) String() string {
	switch k {
	case DataKindCell:
		return "cell"
	case DataKindBase:
		return "base"
	case DataKindClientOnly:
		return "client"
	default:
		return "unknown"
	}
}

// Container логический контейнер, которому принадлежит запись сущности
type Container uint8

const (
	ContainerNone Container = iota
	ContainerEntered
	ContainerCached
	ContainerPrerequisites
	ContainerVehicle

	containerCount
)

func (c Container) String() string {
	switch c {
	case ContainerEntered:
		return "entered"
	case ContainerCached:
		return "cached"
	case ContainerPrerequisites:
		return "prerequisite_gate"
	case ContainerVehicle:
		return "vehicle_gate"
	default:
		return "none"
	}
}

// CreateMessage полное состояние сущности от сервера
type CreateMessage struct {
	ID        EntityID
	TypeID    TypeID
	SpaceID   SpaceID
	VehicleID EntityID
	Position  vec.Vec3Float
	Direction vec.Vec3Float
	Payload   []byte
}

// MoveMessage обновление позиции с оценкой ошибки
type MoveMessage struct {
	ID            EntityID
	SpaceID       SpaceID
	VehicleID     EntityID
	Position      vec.Vec3Float
	PositionError vec.Vec3Float
	Direction     vec.Vec3Float
	IsVolatile    bool
}

// MoveSample вход фильтра движения
type MoveSample struct {
	Time          time.Time
	SpaceID       SpaceID
	VehicleID     EntityID
	Position      vec.Vec3Float
	PositionError vec.Vec3Float
	Direction     vec.Vec3Float
	IsVolatile    bool
}

// Stats размеры контейнеров движка
type Stats struct {
	Entered       int
	Cached        int
	Prerequisites int
	Vehicle       int
	Unknown       int
	Pending       int
}
