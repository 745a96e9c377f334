package aoi

import "slices"

// record запись арены. Тег container единственный источник правды о том,
// какому контейнеру принадлежит сущность.
type record struct {
	id         EntityID
	entity     Entity
	container  Container
	enterCount int
	spaceID    SpaceID  // пространство, записанное при допуске/в шлюзе
	vehicleID  EntityID // транспорт, записанный при допуске/в шлюзе
}

// EntityRegistry арена записей сущностей по id.
// entered и cached, а также оба шлюза, являются срезами этой арены по тегу.
type EntityRegistry struct {
	records map[EntityID]*record
	counts  [containerCount]int
}

func newEntityRegistry() *EntityRegistry {
	return &EntityRegistry{records: make(map[EntityID]*record)}
}

func (r *EntityRegistry) get(id EntityID) *record {
	return r.records[id]
}

// insert добавляет новую запись; id не должен присутствовать
func (r *EntityRegistry) insert(id EntityID, ent Entity, c Container) *record {
	rec := &record{id: id, entity: ent, container: c}
	r.records[id] = rec
	r.counts[c]++
	return rec
}

// move перетегирует запись
func (r *EntityRegistry) move(rec *record, to Container) {
	if rec.container == to {
		return
	}
	r.counts[rec.container]--
	r.counts[to]++
	rec.container = to
}

// remove отпускает запись из арены
func (r *EntityRegistry) remove(rec *record) {
	if cur, ok := r.records[rec.id]; !ok || cur != rec {
		return
	}
	delete(r.records, rec.id)
	r.counts[rec.container]--
	rec.container = ContainerNone
}

// isEntered проверяет членство id в entered
func (r *EntityRegistry) isEntered(id EntityID) bool {
	rec := r.records[id]
	return rec != nil && rec.container == ContainerEntered
}

// Count число записей в контейнере
func (r *EntityRegistry) Count(c Container) int {
	return r.counts[c]
}

// ids возвращает отсортированные id контейнера; сортировка даёт детерминированный обход
func (r *EntityRegistry) ids(c Container) []EntityID {
	out := make([]EntityID, 0, r.counts[c])
	for id, rec := range r.records {
		if rec.container == c {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// all возвращает все id арены по возрастанию
func (r *EntityRegistry) all() []EntityID {
	out := make([]EntityID, 0, len(r.records))
	for id := range r.records {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (r *EntityRegistry) Len() int { return len(r.records) }
