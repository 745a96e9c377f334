package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/logging"
)

const tracerName = "github.com/annel0/aoi-client/internal/client"

// Driver единственная горутина, владеющая движком: применяет кадры
// и вызывает Tick с фиксированной частотой.
type Driver struct {
	engine     *aoi.Engine
	dispatcher *Dispatcher
	interval   time.Duration
	tracer     trace.Tracer
	log        *logging.Logger
	ticks      uint64
}

// DriverOption настраивает Driver
type DriverOption func(*Driver)

// WithTracerProvider задаёт провайдер трассировки вместо глобального
func WithTracerProvider(tp trace.TracerProvider) DriverOption {
	return func(d *Driver) { d.tracer = tp.Tracer(tracerName) }
}

// NewDriver создаёт цикл клиента
func NewDriver(engine *aoi.Engine, dispatcher *Dispatcher, interval time.Duration, opts ...DriverOption) *Driver {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	d := &Driver{
		engine:     engine,
		dispatcher: dispatcher,
		interval:   interval,
		tracer:     otel.Tracer(tracerName),
		log:        logging.GetClientLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run блокируется до отмены ctx. При выходе все сущности уничтожаются
// как при разрыве соединения.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("🚀 цикл AoI запущен (тик %v)", d.interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.engine.ClearAll(aoi.NullEntityID, false)
			d.log.Info("🛑 цикл AoI остановлен после %d тиков", d.ticks)
			return nil
		case ev := <-d.dispatcher.Frames():
			d.frame(ctx, ev.ID, func() (int, error) { return d.dispatcher.HandleFrame(ev) })
		case now := <-ticker.C:
			d.tick(ctx, now, last)
			last = now
		}
	}
}

func (d *Driver) frame(ctx context.Context, eventID string, apply func() (int, error)) {
	_, span := d.tracer.Start(ctx, "aoi.frame", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()

	n, err := apply()
	span.SetAttributes(attribute.Int("aoi.messages", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
	}
}

func (d *Driver) tick(ctx context.Context, now, last time.Time) {
	_, span := d.tracer.Start(ctx, "aoi.tick")
	defer span.End()

	d.engine.Tick(now, last)
	d.ticks++

	st := d.engine.Stats()
	span.SetAttributes(
		attribute.Int("aoi.entered", st.Entered),
		attribute.Int("aoi.cached", st.Cached),
		attribute.Int("aoi.prerequisite_gate", st.Prerequisites),
		attribute.Int("aoi.vehicle_gate", st.Vehicle),
	)
}
