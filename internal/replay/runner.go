package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/protocol"
)

// Runner применяет шаги сценария к движку и печатает размеры контейнеров после каждого шага
type Runner struct {
	engine *aoi.Engine
	apply  func(*protocol.Message)
	out    io.Writer
	now    time.Time
}

// NewRunner создаёт проигрыватель; apply передаёт сообщение движку (обычно Dispatcher.Apply)
func NewRunner(engine *aoi.Engine, apply func(*protocol.Message), out io.Writer) *Runner {
	return &Runner{engine: engine, apply: apply, out: out, now: engine.Now()}
}

// Run проигрывает сценарий и в конце проверяет инварианты движка
func (r *Runner) Run(s *Script) error {
	fmt.Fprintf(r.out, "%-4s %-20s %6s  %s\n", "#", "op", "id", "entered cached prereq vehicle unknown pending")
	for i, st := range s.Steps {
		if st.Op == OpTick {
			n := st.Count
			if n <= 0 {
				n = 1
			}
			for j := 0; j < n; j++ {
				next := r.now.Add(s.Tick)
				r.engine.Tick(next, r.now)
				r.now = next
			}
		} else {
			r.apply(st.Message())
		}
		r.print(i, st)
	}
	if err := r.engine.CheckInvariants(); err != nil {
		return fmt.Errorf("инварианты после сценария: %w", err)
	}
	return nil
}

func (r *Runner) print(i int, st Step) {
	stats := r.engine.Stats()
	op := st.Op
	if st.Op == OpTick && st.Count > 1 {
		op = fmt.Sprintf("tick x%d", st.Count)
	}
	fmt.Fprintf(r.out, "%-4d %-20s %6d  %7d %6d %6d %7d %7d %7d\n",
		i, op, st.ID, stats.Entered, stats.Cached, stats.Prerequisites, stats.Vehicle, stats.Unknown, stats.Pending)
}
