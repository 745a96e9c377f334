// Package protocol кодирует сообщения AoI в формате protobuf wire
// и упаковывает их в кадры с необязательным zstd-сжатием.
package protocol

import (
	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/vec"
)

// Kind вид сообщения
type Kind uint8

const (
	KindUnknown Kind = iota
	KindCreate
	KindBasePlayerCreate
	KindEnter
	KindLeave
	KindProperties
	KindProperty
	KindMethod
	KindMove
	KindRestoreClient
	KindEntitiesReset

	// Исходящие
	KindEntityUpdateRequest
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindBasePlayerCreate:
		return "base_player_create"
	case KindEnter:
		return "enter"
	case KindLeave:
		return "leave"
	case KindProperties:
		return "properties"
	case KindProperty:
		return "property"
	case KindMethod:
		return "method"
	case KindMove:
		return "move"
	case KindRestoreClient:
		return "restore_client"
	case KindEntitiesReset:
		return "entities_reset"
	case KindEntityUpdateRequest:
		return "entity_update_request"
	default:
		return "unknown"
	}
}

// ParseKind обратная к String операция; неизвестное имя даёт KindUnknown
func ParseKind(s string) Kind {
	for k := KindCreate; k <= KindEntityUpdateRequest; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Message одно сообщение протокола. Какие поля значимы, зависит от Kind.
type Message struct {
	Kind          Kind
	ID            aoi.EntityID
	TypeID        aoi.TypeID
	SpaceID       aoi.SpaceID
	VehicleID     aoi.EntityID
	MessageID     uint16
	Position      vec.Vec3Float
	PositionError vec.Vec3Float
	Direction     vec.Vec3Float
	IsVolatile    bool
	KeepPlayer    bool
	Payload       []byte
	// Stamps cache stamps свойств в запросе обновления
	Stamps []uint32
}

// CreateMessage представление create для движка
func (m *Message) CreateMessage() aoi.CreateMessage {
	return aoi.CreateMessage{
		ID:        m.ID,
		TypeID:    m.TypeID,
		SpaceID:   m.SpaceID,
		VehicleID: m.VehicleID,
		Position:  m.Position,
		Direction: m.Direction,
		Payload:   m.Payload,
	}
}

// MoveMessage представление move для движка
func (m *Message) MoveMessage() aoi.MoveMessage {
	return aoi.MoveMessage{
		ID:            m.ID,
		SpaceID:       m.SpaceID,
		VehicleID:     m.VehicleID,
		Position:      m.Position,
		PositionError: m.PositionError,
		Direction:     m.Direction,
		IsVolatile:    m.IsVolatile,
	}
}
