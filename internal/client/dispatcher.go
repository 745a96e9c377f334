// Package client связывает шину событий, кодек протокола и движок AoI:
// входящие кадры применяются к движку в одной горутине вместе с тиками.
package client

import (
	"context"
	"sync/atomic"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/eventbus"
	"github.com/annel0/aoi-client/internal/logging"
	"github.com/annel0/aoi-client/internal/protocol"
	"github.com/annel0/aoi-client/internal/stamps"
)

const (
	// EventAoIFrame тип события с кадром сообщений от сервера
	EventAoIFrame = "AoIFrame"
	// EventEntityUpdateRequest тип исходящего запроса свежих свойств
	EventEntityUpdateRequest = "EntityUpdateRequest"
)

// Dispatcher принимает кадры AoIFrame из шины и применяет их к движку.
// Подписка только складывает кадры в канал; применение выполняет владелец движка.
type Dispatcher struct {
	engine *aoi.Engine
	codec  *protocol.FrameCodec
	stamps stamps.Store
	log    *logging.Logger

	frames chan *eventbus.Envelope
	sub    eventbus.Subscription
	cancel context.CancelFunc

	applied  uint64
	rejected uint64
}

// NewDispatcher подписывается на кадры AoI. buffer задаёт глубину очереди кадров.
func NewDispatcher(bus eventbus.EventBus, engine *aoi.Engine, codec *protocol.FrameCodec, store stamps.Store, buffer int) (*Dispatcher, error) {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		engine: engine,
		codec:  codec,
		stamps: store,
		log:    logging.GetClientLogger(),
		frames: make(chan *eventbus.Envelope, buffer),
	}
	// отмена контекста освобождает обработчик шины, ждущий места в очереди
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{EventAoIFrame}}, d.enqueue)
	if err != nil {
		cancel()
		return nil, err
	}
	d.sub = sub
	d.cancel = cancel
	return d, nil
}

// enqueue блокирует шину, пока очередь кадров полна: терять кадры нельзя
func (d *Dispatcher) enqueue(ctx context.Context, ev *eventbus.Envelope) {
	select {
	case d.frames <- ev:
	case <-ctx.Done():
	}
}

// Frames канал принятых кадров
func (d *Dispatcher) Frames() <-chan *eventbus.Envelope {
	return d.frames
}

// HandleFrame декодирует кадр и применяет сообщения по порядку.
// Возвращает число применённых сообщений.
func (d *Dispatcher) HandleFrame(ev *eventbus.Envelope) (int, error) {
	logging.LogFrame(d.log, ev.Source, ev.EventType, ev.Payload)

	msgs, err := d.codec.Decode(ev.Payload)
	if err != nil {
		atomic.AddUint64(&d.rejected, 1)
		logging.LogProtocolError(d.log, ev.Source, err, ev.Payload)
		return 0, err
	}
	for _, m := range msgs {
		d.Apply(m)
	}
	atomic.AddUint64(&d.applied, uint64(len(msgs)))
	return len(msgs), nil
}

// Apply передаёт одно сообщение соответствующему обработчику движка
func (d *Dispatcher) Apply(m *protocol.Message) {
	d.log.Trace("← %s id=%d", m.Kind, m.ID)

	switch m.Kind {
	case protocol.KindCreate:
		d.rememberStamps(m)
		d.engine.OnCreate(m.CreateMessage())
	case protocol.KindBasePlayerCreate:
		d.rememberStamps(m)
		d.engine.OnBasePlayerCreate(m.ID, m.TypeID, m.Payload)
	case protocol.KindEnter:
		d.engine.OnEnter(m.ID, m.SpaceID, m.VehicleID)
	case protocol.KindLeave:
		d.engine.OnLeave(m.ID)
	case protocol.KindProperties:
		d.engine.OnProperties(m.ID, m.Payload)
	case protocol.KindProperty:
		d.engine.OnProperty(m.ID, m.MessageID, m.Payload)
	case protocol.KindMethod:
		d.engine.OnMethod(m.ID, m.MessageID, m.Payload)
	case protocol.KindMove:
		d.engine.OnMoveWithError(m.MoveMessage())
	case protocol.KindRestoreClient:
		if err := d.engine.RestoreClient(m.ID, m.SpaceID, m.VehicleID, m.Position, m.Direction, m.Payload); err != nil {
			d.log.Error("restore client %d: %v", m.ID, err)
		}
	case protocol.KindEntitiesReset:
		d.engine.OnEntitiesReset(m.KeepPlayer)
	default:
		d.log.Warn("⚠️ неожиданное сообщение %s для %d, пропущено", m.Kind, m.ID)
	}
}

func (d *Dispatcher) rememberStamps(m *protocol.Message) {
	if d.stamps == nil || len(m.Stamps) == 0 {
		return
	}
	if err := d.stamps.Put(m.ID, m.Stamps); err != nil {
		d.log.Warn("не удалось сохранить метки %d: %v", m.ID, err)
	}
}

// Counters число применённых сообщений и отвергнутых кадров
func (d *Dispatcher) Counters() (applied, rejected uint64) {
	return atomic.LoadUint64(&d.applied), atomic.LoadUint64(&d.rejected)
}

// Stop отписывается от шины и отпускает заблокированную доставку
func (d *Dispatcher) Stop() {
	d.cancel()
	d.sub.Unsubscribe()
}
