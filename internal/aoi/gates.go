package aoi

// gate очередь id, ожидающих условия. Членство определяется тегом записи,
// поэтому устаревшие и повторные элементы очереди безопасно пропускаются.
type gate struct {
	container Container
	queue     []EntityID
}

// park переносит запись в шлюз
func (g *gate) park(reg *EntityRegistry, rec *record) {
	reg.move(rec, g.container)
	g.queue = append(g.queue, rec.id)
}

// drain обходит шлюз в порядке парковки. try вызывается по одному разу на
// каждую сущность, которая всё ещё числится в шлюзе; если после try запись
// осталась здесь же, она остаётся в очереди.
func (g *gate) drain(reg *EntityRegistry, try func(rec *record)) {
	if len(g.queue) == 0 {
		return
	}
	queue := g.queue
	g.queue = nil
	seen := make(map[EntityID]struct{}, len(queue))
	var keep []EntityID

	for _, id := range queue {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		rec := reg.get(id)
		if rec == nil || rec.container != g.container {
			continue
		}
		try(rec)
		if rec.container == g.container {
			keep = append(keep, id)
		}
	}
	// try мог запарковать новые записи в этот же шлюз
	g.queue = append(keep, g.queue...)
}

// compact убирает из очереди id, которых больше нет в шлюзе
func (g *gate) compact(reg *EntityRegistry) {
	kept := g.queue[:0]
	seen := make(map[EntityID]struct{}, len(g.queue))
	for _, id := range g.queue {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec := reg.get(id); rec != nil && rec.container == g.container {
			kept = append(kept, id)
		}
	}
	g.queue = kept
}

// PrerequisiteGate держит сущности, чьи ресурсы ещё не загружены
type PrerequisiteGate struct {
	gate
}

func newPrerequisiteGate() *PrerequisiteGate {
	return &PrerequisiteGate{gate{container: ContainerPrerequisites}}
}

// VehicleDependencyGate держит сущности, чей транспорт ещё не в мире
type VehicleDependencyGate struct {
	gate
}

func newVehicleDependencyGate() *VehicleDependencyGate {
	return &VehicleDependencyGate{gate{container: ContainerVehicle}}
}
