package qa

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/hbook"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/histbook"
)

// Fixed kinematic binnings shared by all particle roles.
var (
	ptAxisDefault = histbook.AxisSpec{Bins: 240, Min: 0, Max: 6}
	etaAxis       = histbook.AxisSpec{Bins: 200, Min: -1.5, Max: 1.5}
	phiAxis       = histbook.AxisSpec{Bins: 200, Min: 0, Max: 2 * math.Pi}
	pAxis         = histbook.AxisSpec{Bins: 240, Min: 0, Max: 6}
)

// ParticleHisto books and fills the QA histogram set of one particle
// role (e.g. the Phi candidate, or one of its children). The folder
// name separates roles inside a shared registry.
type ParticleHisto struct {
	folder string
	pdg    int

	pt       *hbook.H1D
	eta      *hbook.H1D
	phi      *hbook.H1D
	p        *hbook.H1D
	etaPhi   *hbook.H2D
	fitVarPt *hbook.H2D
}

// NewParticleHisto creates a delegate filling under the given folder.
func NewParticleHisto(folder string) *ParticleHisto {
	return &ParticleHisto{folder: folder}
}

// Init books the role's histograms in reg. ptAxis and fitVarAxis are
// the configurable binnings of the fit-variable-vs-pT plot; debug
// additionally books an eta-phi acceptance map; extended books the
// total-momentum histogram. pdg is recorded as a label on the booked
// schema.
func (h *ParticleHisto) Init(
	reg *histbook.Registry,
	ptAxis, fitVarAxis histbook.AxisSpec,
	debug bool, pdg int, extended bool,
) error {
	h.pdg = pdg

	var err error
	if h.pt, err = reg.H1D(h.folder+"/hPt", ptAxisDefault); err != nil {
		return errors.Wrap(err, "ParticleHisto", "Init", "book hPt")
	}
	if h.eta, err = reg.H1D(h.folder+"/hEta", etaAxis); err != nil {
		return errors.Wrap(err, "ParticleHisto", "Init", "book hEta")
	}
	if h.phi, err = reg.H1D(h.folder+"/hPhi", phiAxis); err != nil {
		return errors.Wrap(err, "ParticleHisto", "Init", "book hPhi")
	}
	if h.fitVarPt, err = reg.H2D(h.folder+"/hFitVarPt", ptAxis, fitVarAxis); err != nil {
		return errors.Wrap(err, "ParticleHisto", "Init", "book hFitVarPt")
	}
	h.label(h.pt, h.eta, h.phi)
	h.fitVarPt.Annotation()["pdg"] = pdg

	if extended {
		if h.p, err = reg.H1D(h.folder+"/hP", pAxis); err != nil {
			return errors.Wrap(err, "ParticleHisto", "Init", "book hP")
		}
		h.label(h.p)
	}

	if debug {
		if h.etaPhi, err = reg.H2D(h.folder+"/hEtaPhi", etaAxis, phiAxis); err != nil {
			return errors.Wrap(err, "ParticleHisto", "Init", "book hEtaPhi")
		}
		h.etaPhi.Annotation()["pdg"] = pdg
	}

	return nil
}

func (h *ParticleHisto) label(hists ...*hbook.H1D) {
	for _, hist := range hists {
		ann := hist.Annotation()
		ann["pdg"] = h.pdg
		ann["title"] = fmt.Sprintf("%s (PDG %d)", ann["title"], h.pdg)
	}
}

// FillQA fills the booked set for one particle row.
func (h *ParticleHisto) FillQA(part *fdtable.Particle) {
	h.pt.Fill(part.Pt, 1)
	h.eta.Fill(part.Eta, 1)
	h.phi.Fill(part.Phi, 1)
	h.fitVarPt.Fill(part.Pt, part.TempFitVar, 1)
	if h.p != nil {
		h.p.Fill(part.P, 1)
	}
	if h.etaPhi != nil {
		h.etaPhi.Fill(part.Eta, part.Phi, 1)
	}
}
