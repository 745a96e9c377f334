package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/vec"
)

var (
	// ErrTruncated данные закончились посреди поля
	ErrTruncated = errors.New("protocol: truncated message")
	// ErrUnknownKind вид сообщения не поддерживается
	ErrUnknownKind = errors.New("protocol: unknown message kind")
)

// Номера полей сообщения
const (
	fieldKind          protowire.Number = 1
	fieldID            protowire.Number = 2
	fieldTypeID        protowire.Number = 3
	fieldSpaceID       protowire.Number = 4
	fieldVehicleID     protowire.Number = 5
	fieldMessageID     protowire.Number = 6
	fieldPosition      protowire.Number = 7
	fieldPositionError protowire.Number = 8
	fieldDirection     protowire.Number = 9
	fieldVolatile      protowire.Number = 10
	fieldKeepPlayer    protowire.Number = 11
	fieldPayload       protowire.Number = 12
	fieldStamps        protowire.Number = 13
)

// fieldBatchMessage номер поля вложенного сообщения в пакете
const fieldBatchMessage protowire.Number = 1

// vecSize три fixed64
const vecSize = 24

// Marshal кодирует сообщение. Нулевые поля не пишутся.
func Marshal(m *Message) []byte {
	return AppendMessage(nil, m)
}

// AppendMessage дописывает закодированное сообщение в b
func AppendMessage(b []byte, m *Message) []byte {
	b = appendVarint(b, fieldKind, uint64(m.Kind))
	b = appendVarint(b, fieldID, protowire.EncodeZigZag(int64(m.ID)))
	b = appendVarint(b, fieldTypeID, uint64(m.TypeID))
	b = appendVarint(b, fieldSpaceID, protowire.EncodeZigZag(int64(m.SpaceID)))
	b = appendVarint(b, fieldVehicleID, protowire.EncodeZigZag(int64(m.VehicleID)))
	b = appendVarint(b, fieldMessageID, uint64(m.MessageID))
	b = appendVec(b, fieldPosition, m.Position)
	b = appendVec(b, fieldPositionError, m.PositionError)
	b = appendVec(b, fieldDirection, m.Direction)
	b = appendVarint(b, fieldVolatile, protowire.EncodeBool(m.IsVolatile))
	b = appendVarint(b, fieldKeepPlayer, protowire.EncodeBool(m.KeepPlayer))
	if len(m.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	if len(m.Stamps) > 0 {
		var packed []byte
		for _, s := range m.Stamps {
			packed = protowire.AppendVarint(packed, uint64(s))
		}
		b = protowire.AppendTag(b, fieldStamps, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendVec(b []byte, num protowire.Number, v vec.Vec3Float) []byte {
	if v.IsZero() {
		return b
	}
	raw := make([]byte, 0, vecSize)
	raw = protowire.AppendFixed64(raw, math.Float64bits(v.X))
	raw = protowire.AppendFixed64(raw, math.Float64bits(v.Y))
	raw = protowire.AppendFixed64(raw, math.Float64bits(v.Z))
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, raw)
}

// Unmarshal декодирует сообщение. Неизвестные поля пропускаются.
func Unmarshal(b []byte) (*Message, error) {
	m := &Message{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, wireError(protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, wireError(protowire.ParseError(n))
			}
			b = b[n:]
			m.setVarint(num, v)

		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, wireError(protowire.ParseError(n))
			}
			b = b[n:]
			if err := m.setBytes(num, v); err != nil {
				return nil, err
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, wireError(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if m.Kind == KindUnknown || m.Kind > KindEntityUpdateRequest {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, m.Kind)
	}
	return m, nil
}

func (m *Message) setVarint(num protowire.Number, v uint64) {
	switch num {
	case fieldKind:
		m.Kind = Kind(v)
	case fieldID:
		m.ID = aoi.EntityID(protowire.DecodeZigZag(v))
	case fieldTypeID:
		m.TypeID = aoi.TypeID(v)
	case fieldSpaceID:
		m.SpaceID = aoi.SpaceID(protowire.DecodeZigZag(v))
	case fieldVehicleID:
		m.VehicleID = aoi.EntityID(protowire.DecodeZigZag(v))
	case fieldMessageID:
		m.MessageID = uint16(v)
	case fieldVolatile:
		m.IsVolatile = protowire.DecodeBool(v)
	case fieldKeepPlayer:
		m.KeepPlayer = protowire.DecodeBool(v)
	}
}

func (m *Message) setBytes(num protowire.Number, v []byte) error {
	switch num {
	case fieldPosition:
		return decodeVec(v, &m.Position)
	case fieldPositionError:
		return decodeVec(v, &m.PositionError)
	case fieldDirection:
		return decodeVec(v, &m.Direction)
	case fieldPayload:
		m.Payload = append([]byte(nil), v...)
	case fieldStamps:
		for len(v) > 0 {
			s, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return wireError(protowire.ParseError(n))
			}
			v = v[n:]
			m.Stamps = append(m.Stamps, uint32(s))
		}
	}
	return nil
}

func decodeVec(raw []byte, out *vec.Vec3Float) error {
	if len(raw) != vecSize {
		return fmt.Errorf("%w: vector of %d bytes", ErrTruncated, len(raw))
	}
	var parts [3]float64
	for i := range parts {
		v, n := protowire.ConsumeFixed64(raw)
		if n < 0 {
			return wireError(protowire.ParseError(n))
		}
		raw = raw[n:]
		parts[i] = math.Float64frombits(v)
	}
	*out = vec.Vec3Float{X: parts[0], Y: parts[1], Z: parts[2]}
	return nil
}

func wireError(err error) error {
	return fmt.Errorf("%w: %v", ErrTruncated, err)
}

// MarshalBatch кодирует несколько сообщений в одно тело кадра
func MarshalBatch(msgs []*Message) []byte {
	var b []byte
	for _, m := range msgs {
		b = protowire.AppendTag(b, fieldBatchMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, Marshal(m))
	}
	return b
}

// UnmarshalBatch декодирует тело кадра в порядке следования сообщений
func UnmarshalBatch(b []byte) ([]*Message, error) {
	var out []*Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, wireError(protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldBatchMessage || typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, wireError(protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, wireError(protowire.ParseError(n))
		}
		b = b[n:]
		m, err := Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", len(out), err)
		}
		out = append(out, m)
	}
	return out, nil
}
