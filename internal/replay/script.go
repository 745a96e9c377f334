// Package replay проигрывает YAML-сценарии сообщений AoI через движок.
package replay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/protocol"
	"github.com/annel0/aoi-client/internal/vec"
)

// OpTick шаг сценария, продвигающий время движка
const OpTick = "tick"

// Script сценарий: шаг тика и список шагов
type Script struct {
	Tick  time.Duration `yaml:"tick"`
	Steps []Step        `yaml:"steps"`
}

// Step одно сообщение сервера или серия тиков
type Step struct {
	Op        string     `yaml:"op"`
	ID        int32      `yaml:"id"`
	TypeID    uint16     `yaml:"type_id"`
	Space     int32      `yaml:"space"`
	Vehicle   int32      `yaml:"vehicle"`
	MessageID uint16     `yaml:"message_id"`
	Pos       [3]float64 `yaml:"pos"`
	Dir       [3]float64 `yaml:"dir"`
	Error     [3]float64 `yaml:"error"`
	Volatile  bool       `yaml:"volatile"`
	Keep      bool       `yaml:"keep_player"`
	Payload   string     `yaml:"payload"`
	Stamps    []uint32   `yaml:"stamps"`
	Count     int        `yaml:"count"` // для tick
}

// Load читает сценарий из файла
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение сценария %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает сценарий и проверяет операции шагов
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("разбор сценария: %w", err)
	}
	if s.Tick <= 0 {
		s.Tick = 50 * time.Millisecond
	}
	for i, st := range s.Steps {
		if st.Op == OpTick {
			continue
		}
		k := protocol.ParseKind(st.Op)
		if k == protocol.KindUnknown || k == protocol.KindEntityUpdateRequest {
			return nil, fmt.Errorf("шаг %d: неизвестная операция %q", i, st.Op)
		}
	}
	return &s, nil
}

func toVec(v [3]float64) vec.Vec3Float {
	return vec.Vec3Float{X: v[0], Y: v[1], Z: v[2]}
}

// Message сообщение протокола для шага; для tick возвращает nil
func (st Step) Message() *protocol.Message {
	if st.Op == OpTick {
		return nil
	}
	m := &protocol.Message{
		Kind:          protocol.ParseKind(st.Op),
		ID:            aoi.EntityID(st.ID),
		TypeID:        aoi.TypeID(st.TypeID),
		SpaceID:       aoi.SpaceID(st.Space),
		VehicleID:     aoi.EntityID(st.Vehicle),
		MessageID:     st.MessageID,
		Position:      toVec(st.Pos),
		PositionError: toVec(st.Error),
		Direction:     toVec(st.Dir),
		IsVolatile:    st.Volatile,
		KeepPlayer:    st.Keep,
		Stamps:        st.Stamps,
	}
	if st.Payload != "" {
		m.Payload = []byte(st.Payload)
	}
	return m
}
