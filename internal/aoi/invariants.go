package aoi

import (
	"errors"
	"fmt"
)

// CheckInvariants проверяет структурные инварианты движка.
// Членство в контейнерах задаётся одним тегом записи, поэтому
// уникальность контейнера проверяется через согласованность счётчиков.
func (e *Engine) CheckInvariants() error {
	var errs []error

	var counts [containerCount]int
	for id, rec := range e.registry.records {
		if rec.id != id {
			errs = append(errs, fmt.Errorf("record %d stored under id %d", rec.id, id))
		}
		if rec.container == ContainerNone {
			errs = append(errs, fmt.Errorf("entity %d has no container", id))
		}
		counts[rec.container]++

		if rec.container != ContainerEntered {
			continue
		}
		if rec.enterCount <= 0 {
			errs = append(errs, fmt.Errorf("entity %d is entered with enterCount %d", id, rec.enterCount))
		}
		if rec.vehicleID != NullEntityID && !e.registry.isEntered(rec.vehicleID) {
			errs = append(errs, fmt.Errorf("entity %d is entered but its vehicle %d is not", id, rec.vehicleID))
		}
		if n := e.pending.LenFor(id); n > 0 {
			errs = append(errs, fmt.Errorf("entity %d is entered with %d undelivered messages", id, n))
		}
	}
	if counts != e.registry.counts {
		errs = append(errs, fmt.Errorf("container counters %v do not match records %v", e.registry.counts, counts))
	}

	for id := range e.ledger.records {
		if e.registry.get(id) != nil {
			errs = append(errs, fmt.Errorf("unknown record exists for materialized entity %d", id))
		}
	}

	return errors.Join(errs...)
}
