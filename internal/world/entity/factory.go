package entity

import (
	"fmt"
	"sync"
	"time"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/logging"
)

// Factory реестр типов сущностей, создающий handle по id типа
type Factory struct {
	mu          sync.RWMutex
	types       map[aoi.TypeID]*TypeDescriptor
	assets      AssetLoader
	observer    Observer
	filterDelay time.Duration
	log         *logging.Logger
}

// NewFactory создаёт пустой реестр. filterDelay задержка отображения
// для AvatarFilter, обычно один тик.
func NewFactory(assets AssetLoader, observer Observer, filterDelay time.Duration) *Factory {
	log := logging.GetComponentLogger("entity")
	if observer == nil {
		observer = NewLogObserver(log)
	}
	return &Factory{
		types:       make(map[aoi.TypeID]*TypeDescriptor),
		assets:      assets,
		observer:    observer,
		filterDelay: filterDelay,
		log:         log,
	}
}

// Register регистрирует тип; повторная регистрация того же id запрещена
func (f *Factory) Register(desc TypeDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := desc.Type.TypeID()
	if id == aoi.CellPlayerTypeID {
		return fmt.Errorf("type id %d is reserved", id)
	}
	if _, exists := f.types[id]; exists {
		return fmt.Errorf("entity type %s (%d) already registered", desc.Type, id)
	}
	if desc.Name == "" {
		desc.Name = desc.Type.String()
	}
	f.types[id] = &desc
	return nil
}

// RegisterDefaultTypes регистрирует DefaultTypes
func (f *Factory) RegisterDefaultTypes() error {
	for _, desc := range DefaultTypes() {
		if err := f.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

// Descriptor описание зарегистрированного типа
func (f *Factory) Descriptor(id aoi.TypeID) (TypeDescriptor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	desc, ok := f.types[id]
	if !ok {
		return TypeDescriptor{}, false
	}
	return *desc, true
}

// Construct реализует aoi.Factory
func (f *Factory) Construct(req aoi.ConstructRequest) (aoi.Entity, error) {
	f.mu.RLock()
	desc, ok := f.types[req.TypeID]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", aoi.ErrUnknownType, req.TypeID)
	}

	e := &Entity{
		id:         req.ID,
		desc:       desc,
		kind:       req.Kind,
		Properties: make(map[string]interface{}),
		Position:   req.Position,
		Direction:  req.Direction,
		SpaceID:    req.SpaceID,
		VehicleID:  req.VehicleID,
		local:      req.Kind != aoi.DataKindCell || desc.LocallyControlled,
		filter:     NewAvatarFilter(f.filterDelay),
		assets:     f.assets,
		observer:   f.observer,
		log:        f.log,
	}

	if sister, ok := req.Sister.(*Entity); ok && sister != nil {
		for k, v := range sister.Properties {
			e.Properties[k] = v
		}
	}
	props, ok := e.decodeObject(req.Payload)
	if !ok {
		return nil, fmt.Errorf("construct %s %d: invalid property payload", desc.Name, req.ID)
	}
	for k, v := range props {
		e.Properties[k] = v
	}
	if desc.Behavior != nil {
		desc.Behavior.OnSpawn(e)
	}

	if f.assets != nil && len(desc.Assets) > 0 {
		f.assets.Request(desc.Assets)
	}

	f.log.Trace("создан %s %d (kind=%s, enterCount=%d)", desc.Name, req.ID, req.Kind, req.EnterCount)
	return e, nil
}
