package client

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/eventbus"
	"github.com/annel0/aoi-client/internal/logging"
	"github.com/annel0/aoi-client/internal/protocol"
	"github.com/annel0/aoi-client/internal/stamps"
)

// publishTimeout ограничивает публикацию запроса из потока движка
const publishTimeout = 100 * time.Millisecond

// BusRequester публикует EntityUpdateRequest в шину.
// Запрос несёт сохранённые cache stamps, чтобы сервер мог ответить пустым ответом.
type BusRequester struct {
	bus    eventbus.EventBus
	codec  *protocol.FrameCodec
	stamps stamps.Store
	source string
	log    *logging.Logger
}

// NewBusRequester создаёт запросчик; store может быть nil
func NewBusRequester(bus eventbus.EventBus, codec *protocol.FrameCodec, store stamps.Store, source string) *BusRequester {
	return &BusRequester{
		bus:    bus,
		codec:  codec,
		stamps: store,
		source: source,
		log:    logging.GetClientLogger(),
	}
}

// RequestEntityUpdate реализует aoi.SnapshotRequester
func (r *BusRequester) RequestEntityUpdate(id aoi.EntityID) {
	msg := &protocol.Message{Kind: protocol.KindEntityUpdateRequest, ID: id}
	if r.stamps != nil {
		s, err := r.stamps.Get(id)
		switch {
		case err == nil:
			msg.Stamps = s
		case !errors.Is(err, stamps.ErrNotFound):
			r.log.Warn("метки %d недоступны: %v", id, err)
		}
	}

	ev := eventbus.NewEnvelope(EventEntityUpdateRequest, r.source, r.codec.Encode([]*protocol.Message{msg}))
	ev.CorrelationID = uuid.NewString()
	ev.Metadata = map[string]string{"entity_id": strconv.FormatInt(int64(id), 10)}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.bus.Publish(ctx, ev); err != nil {
		r.log.Warn("запрос обновления %d не отправлен: %v", id, err)
		return
	}
	r.log.Trace("→ %s id=%d stamps=%d corr=%s", EventEntityUpdateRequest, id, len(msg.Stamps), ev.CorrelationID)
}
