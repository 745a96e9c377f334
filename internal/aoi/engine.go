package aoi

import (
	"time"

	"github.com/annel0/aoi-client/internal/logging"
	"github.com/annel0/aoi-client/internal/vec"
)

// Config параметры движка
type Config struct {
	// ClientOnlyIDBase начало диапазона клиентских id (по умолчанию DefaultClientOnlyIDBase)
	ClientOnlyIDBase EntityID
	// TickInterval длительность тика; create засевает фильтр на один тик в прошлое
	TickInterval time.Duration
	// DebugInvariants проверять инварианты после каждого обработчика
	DebugInvariants bool
}

// Option настраивает Engine
type Option func(*Engine)

// WithSnapshotRequester включает запросы свежих свойств при входе в AoI
func WithSnapshotRequester(r SnapshotRequester) Option {
	return func(e *Engine) { e.requester = r }
}

// WithMetrics подключает Prometheus-метрики
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger задаёт логгер компонента
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// deferredCall вызов, пришедший во время работы другого обработчика
type deferredCall struct {
	kind string
	fn   func()
}

// Engine конечный автомат согласования AoI. Единственный владелец арены,
// обоих шлюзов, журнала неизвестных id и очередей отложенных сообщений.
type Engine struct {
	cfg       Config
	factory   Factory
	requester SnapshotRequester
	metrics   *Metrics
	log       *logging.Logger

	registry *EntityRegistry
	ledger   *UnknownLedger
	pending  *PendingMessageQueue
	prereq   *PrerequisiteGate
	vehicles *VehicleDependencyGate

	playerID     EntityID
	nextClientID EntityID
	now          time.Time // время последнего тика

	busy     bool
	deferred []deferredCall
}

// NewEngine создаёт движок поверх фабрики сущностей
func NewEngine(factory Factory, cfg Config, opts ...Option) *Engine {
	if cfg.ClientOnlyIDBase <= 0 {
		cfg.ClientOnlyIDBase = DefaultClientOnlyIDBase
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	e := &Engine{
		cfg:          cfg,
		factory:      factory,
		registry:     newEntityRegistry(),
		ledger:       newUnknownLedger(),
		pending:      newPendingMessageQueue(),
		prereq:       newPrerequisiteGate(),
		vehicles:     newVehicleDependencyGate(),
		nextClientID: cfg.ClientOnlyIDBase,
		now:          time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.GetAoILogger()
	}
	return e
}

// run выполняет обработчик атомарно. Вызов изнутри другого обработчика
// (колбэк сущности) не выполняется сразу, а откладывается до следующего Tick.
func (e *Engine) run(kind string, fn func()) {
	if e.busy {
		e.log.Warn("⚠️ повторный вход в движок (%s) из колбэка сущности, отложено до следующего тика", kind)
		e.metrics.deferredCall()
		e.deferred = append(e.deferred, deferredCall{kind: kind, fn: fn})
		return
	}
	e.busy = true
	defer func() {
		e.busy = false
		e.afterHandler(kind)
	}()
	fn()
}

// hold копирует payload вызова, который будет отложен: вызывающий может переиспользовать буфер
func (e *Engine) hold(p []byte) []byte {
	if !e.busy || p == nil {
		return p
	}
	return append([]byte(nil), p...)
}

func (e *Engine) afterHandler(kind string) {
	e.metrics.message(kind)
	if e.metrics != nil {
		e.metrics.observeStats(e.Stats())
	}
	if e.cfg.DebugInvariants {
		if err := e.CheckInvariants(); err != nil {
			e.log.Error("❌ нарушен инвариант после %s: %v", kind, err)
		}
	}
}

// anomaly протокольная аномалия: предупреждение и счётчик, обработка продолжается
func (e *Engine) anomaly(kind string, format string, args ...interface{}) {
	e.metrics.anomaly(kind)
	e.log.Warn(format, args...)
}

// IsClientOnly id из клиентского диапазона
func (e *Engine) IsClientOnly(id EntityID) bool {
	return id >= e.cfg.ClientOnlyIDBase
}

// PlayerID id локального игрока или NullEntityID
func (e *Engine) PlayerID() EntityID {
	return e.playerID
}

// Now время последнего тика
func (e *Engine) Now() time.Time {
	return e.now
}

// Lookup ищет сущность в entered, а при includeCached также в cached и шлюзах.
// Только чтение: ничего не создаёт и не меняет жизненный цикл.
func (e *Engine) Lookup(id EntityID, includeCached bool) (Entity, bool) {
	rec := e.registry.get(id)
	if rec == nil {
		return nil, false
	}
	if rec.container == ContainerEntered || includeCached {
		return rec.entity, true
	}
	return nil, false
}

// IsInWorld выводится из членства в entered
func (e *Engine) IsInWorld(id EntityID) bool {
	return e.registry.isEntered(id)
}

// ContainerOf контейнер, которому принадлежит id
func (e *Engine) ContainerOf(id EntityID) Container {
	if rec := e.registry.get(id); rec != nil {
		return rec.container
	}
	return ContainerNone
}

// EnterCount счётчик входов материализованной сущности
func (e *Engine) EnterCount(id EntityID) (int, bool) {
	rec := e.registry.get(id)
	if rec == nil {
		return 0, false
	}
	return rec.enterCount, true
}

// Unknown копия записи журнала для id без handle
func (e *Engine) Unknown(id EntityID) (UnknownRecord, bool) {
	rec, ok := e.ledger.Get(id)
	if !ok {
		return UnknownRecord{}, false
	}
	return *rec, true
}

// PendingFor число отложенных сообщений для id
func (e *Engine) PendingFor(id EntityID) int {
	return e.pending.LenFor(id)
}

// EnteredIDs id сущностей в мире по возрастанию
func (e *Engine) EnteredIDs() []EntityID {
	return e.registry.ids(ContainerEntered)
}

// Stats размеры контейнеров
func (e *Engine) Stats() Stats {
	return Stats{
		Entered:       e.registry.Count(ContainerEntered),
		Cached:        e.registry.Count(ContainerCached),
		Prerequisites: e.registry.Count(ContainerPrerequisites),
		Vehicle:       e.registry.Count(ContainerVehicle),
		Unknown:       e.ledger.Len(),
		Pending:       e.pending.Len(),
	}
}

// seedFilter засевает фильтр позицией на один тик в прошлом,
// чтобы первое настоящее обновление не считалось разрывом
func (e *Engine) seedFilter(ent Entity, spaceID SpaceID, vehicleID EntityID, pos, dir vec.Vec3Float) {
	f := ent.Filter()
	if f == nil {
		return
	}
	at := e.now.Add(-e.cfg.TickInterval)
	f.Reset(at)
	f.Input(MoveSample{
		Time:      at,
		SpaceID:   spaceID,
		VehicleID: vehicleID,
		Position:  pos,
		Direction: dir,
	})
}
