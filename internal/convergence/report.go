package convergence

import (
	"fmt"
	"strings"

	"github.com/fabkube/fabkube/internal/orchestration"
)

// Report is the outcome of a convergence run. Entities are listed in
// declaration order.
type Report struct {
	Converged bool
	Passes    int
	Entities  []orchestration.EntityStatus
}

// Summary renders the report as an operator-facing table.
func (r *Report) Summary() string {
	var b strings.Builder

	if r.Converged {
		fmt.Fprintf(&b, "network converged after %d pass(es)\n", r.Passes)
	} else {
		fmt.Fprintf(&b, "network did not converge after %d pass(es)\n", r.Passes)
	}

	width := 0
	for _, es := range r.Entities {
		if l := len(es.ID.String()); l > width {
			width = l
		}
	}
	for _, es := range r.Entities {
		fmt.Fprintf(&b, "  %-*s  %-10s  attempts=%d", width, es.ID, es.State, es.Attempts)
		if es.Err != nil {
			fmt.Fprintf(&b, "  %s", es.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FailedEntities returns the IDs of entities that ended Failed or
// Blocked, in declaration order.
func (r *Report) FailedEntities() []string {
	var ids []string
	for _, es := range r.Entities {
		if es.State == orchestration.StateFailed || es.State == orchestration.StateBlocked {
			ids = append(ids, es.ID.String())
		}
	}
	return ids
}
