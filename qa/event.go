// Package qa provides the histogram-filling delegates used by
// analysis tasks: an event-level delegate, a per-particle-role
// delegate, and the bit-packed PID selection helper.
package qa

import (
	"go-hep.org/x/hep/hbook"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/histbook"
)

// Default event-level binnings, matching the derived-data QA
// conventions of the upstream producer.
var (
	zvtxAxis    = histbook.AxisSpec{Bins: 300, Min: -12.5, Max: 12.5}
	multNtrAxis = histbook.AxisSpec{Bins: 200, Min: 0, Max: 200}
	multV0MAxis = histbook.AxisSpec{Bins: 600, Min: 0, Max: 600}
)

// EventHisto books and fills event-level QA histograms. Init
// establishes the schema; FillQA fills all booked histograms exactly
// once per call.
type EventHisto struct {
	zvtx    *hbook.H1D
	multNtr *hbook.H1D
	multV0M *hbook.H1D
}

// Init books the event histograms in reg under "Event/".
func (h *EventHisto) Init(reg *histbook.Registry) error {
	var err error
	if h.zvtx, err = reg.H1D("Event/zvtx", zvtxAxis); err != nil {
		return errors.Wrap(err, "EventHisto", "Init", "book zvtx")
	}
	if h.multNtr, err = reg.H1D("Event/multNtr", multNtrAxis); err != nil {
		return errors.Wrap(err, "EventHisto", "Init", "book multNtr")
	}
	if h.multV0M, err = reg.H1D("Event/multV0M", multV0MAxis); err != nil {
		return errors.Wrap(err, "EventHisto", "Init", "book multV0M")
	}
	return nil
}

// FillQA fills the event histograms for one collision.
func (h *EventHisto) FillQA(col *fdtable.Collision) {
	h.zvtx.Fill(col.PosZ, 1)
	h.multNtr.Fill(float64(col.MultNtr), 1)
	h.multV0M.Fill(col.MultV0M, 1)
}
