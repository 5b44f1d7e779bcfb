package engine

import (
	"fmt"
	"time"
)

// maxInspectionDepth bounds how many of the most recent items one inspection looks at.
const maxInspectionDepth = 4

// inspect audits a random bin from the top (newest) item downward. Depth is
// min(occupancy, 1+floor(u*4)) and is redrawn every inspection.
func (e *Engine) inspect(now time.Time) InspectionResult {
	bin := &e.bins[e.pick(len(e.bins))]
	depth := 1 + int(e.rng.Float64()*maxInspectionDepth)
	if depth > maxInspectionDepth {
		depth = maxInspectionDepth
	}
	if depth > len(bin.Items) {
		depth = len(bin.Items)
	}

	found := false
	for i := 0; i < depth; i++ {
		if bin.Items[len(bin.Items)-1-i].Misrouted {
			found = true
			break
		}
	}
	res := InspectionResult{Bin: bin.Category, Depth: depth, FoundMisrouted: found}
	e.lastInspection = &res
	e.emit(Event{Kind: EventInspection, At: now, Category: bin.Category, Depth: depth, Misrouted: found})
	if found {
		e.lose(now, CauseInspection, fmt.Sprintf("Inspection found wrong trash in %s bin", bin.Category))
	}
	return res
}
