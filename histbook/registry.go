// Package histbook manages named analysis histograms. A Registry owns
// a flat namespace of slash-separated histogram paths backed by
// go-hep hbook objects and renders its content as YODA output or
// plots at the end of a run.
package histbook

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go-hep.org/x/hep/hbook"

	"github.com/c360/femtostream/errors"
)

// AxisSpec is a histogram binning specification: bin count plus lower
// and upper bound. It is the externally overridable axis type used in
// task configuration.
type AxisSpec struct {
	Bins int     `json:"bins"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Validate checks the axis specification for errors
func (a AxisSpec) Validate() error {
	if a.Bins <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("bins must be positive, got %d: %w", a.Bins, errors.ErrInvalidAxis),
			"AxisSpec", "Validate", "bin count check")
	}
	if a.Min >= a.Max {
		return errors.WrapInvalid(
			fmt.Errorf("min %v not below max %v: %w", a.Min, a.Max, errors.ErrInvalidAxis),
			"AxisSpec", "Validate", "bound check")
	}
	return nil
}

// Registry manages the histograms of one named output surface
// (e.g. "Event", "FullPhiQA"). Booking is thread-safe; filling a
// booked histogram is owned by exactly one task and is serialized by
// the workflow engine.
type Registry struct {
	name string

	mu    sync.RWMutex
	h1    map[string]*hbook.H1D
	h2    map[string]*hbook.H2D
	order []string
}

// New creates an empty registry with the given output name.
func New(name string) *Registry {
	return &Registry{
		name: name,
		h1:   make(map[string]*hbook.H1D),
		h2:   make(map[string]*hbook.H2D),
	}
}

// Name returns the registry's output name.
func (r *Registry) Name() string {
	return r.name
}

func (r *Registry) reserve(path string) error {
	if path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "reserve", "empty histogram path")
	}
	if _, dup := r.h1[path]; dup {
		return errors.WrapInvalid(
			fmt.Errorf("%q in registry %q: %w", path, r.name, errors.ErrDuplicateHistogram),
			"Registry", "reserve", "duplicate path check")
	}
	if _, dup := r.h2[path]; dup {
		return errors.WrapInvalid(
			fmt.Errorf("%q in registry %q: %w", path, r.name, errors.ErrDuplicateHistogram),
			"Registry", "reserve", "duplicate path check")
	}
	return nil
}

func (r *Registry) annotate(ann hbook.Annotation, path string) {
	ann["name"] = path
	ann["path"] = "/" + r.name + "/" + path
	ann["title"] = path
}

// H1D books a one-dimensional histogram under path.
func (r *Registry) H1D(path string, axis AxisSpec) (*hbook.H1D, error) {
	if err := axis.Validate(); err != nil {
		return nil, errors.Wrap(err, "Registry", "H1D", "axis validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.reserve(path); err != nil {
		return nil, err
	}

	h := hbook.NewH1D(axis.Bins, axis.Min, axis.Max)
	r.annotate(h.Annotation(), path)
	r.h1[path] = h
	r.order = append(r.order, path)
	return h, nil
}

// H2D books a two-dimensional histogram under path.
func (r *Registry) H2D(path string, x, y AxisSpec) (*hbook.H2D, error) {
	if err := x.Validate(); err != nil {
		return nil, errors.Wrap(err, "Registry", "H2D", "x axis validation")
	}
	if err := y.Validate(); err != nil {
		return nil, errors.Wrap(err, "Registry", "H2D", "y axis validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.reserve(path); err != nil {
		return nil, err
	}

	h := hbook.NewH2D(x.Bins, x.Min, x.Max, y.Bins, y.Min, y.Max)
	r.annotate(h.Annotation(), path)
	r.h2[path] = h
	r.order = append(r.order, path)
	return h, nil
}

// LookupH1D returns the 1D histogram booked under path, or nil.
func (r *Registry) LookupH1D(path string) *hbook.H1D {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.h1[path]
}

// LookupH2D returns the 2D histogram booked under path, or nil.
func (r *Registry) LookupH2D(path string) *hbook.H2D {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.h2[path]
}

// Entries returns the fill count of the histogram at path, or an
// error if no histogram is booked there.
func (r *Registry) Entries(path string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.h1[path]; ok {
		return h.Entries(), nil
	}
	if h, ok := r.h2[path]; ok {
		return h.Entries(), nil
	}
	return 0, errors.WrapInvalid(
		fmt.Errorf("%q in registry %q: %w", path, r.name, errors.ErrHistogramNotFound),
		"Registry", "Entries", "path lookup")
}

// Paths returns the booked histogram paths in booking order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, len(r.order))
	copy(paths, r.order)
	return paths
}

// yodaMarshaler is implemented by all booked hbook types.
type yodaMarshaler interface {
	MarshalYODA() ([]byte, error)
}

// WriteYODA writes every booked histogram as a YODA block, in a
// stable path order, separated by blank lines.
func (r *Registry) WriteYODA(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, len(r.order))
	copy(paths, r.order)
	sort.Strings(paths)

	var errs []error
	for _, path := range paths {
		var m yodaMarshaler
		if h, ok := r.h1[path]; ok {
			m = h
		} else if h, ok := r.h2[path]; ok {
			m = h
		} else {
			continue
		}

		raw, err := m.MarshalYODA()
		if err != nil {
			errs = append(errs, errors.Wrap(err, "Registry", "WriteYODA", "marshal "+path))
			continue
		}
		if _, err := w.Write(raw); err != nil {
			return errors.WrapTransient(err, "Registry", "WriteYODA", "write "+path)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return errors.WrapTransient(err, "Registry", "WriteYODA", "write separator")
		}
	}

	return stderrors.Join(errs...)
}
