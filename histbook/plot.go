package histbook

import (
	"os"
	"path/filepath"
	"strings"

	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"

	"github.com/c360/femtostream/errors"
)

// plotWidth keeps rendered QA plots readable without being huge.
const plotWidth = 15 * vg.Centimeter

// SavePlots renders every booked 1D histogram as a PNG file under
// dir. File names mirror histogram paths with slashes flattened.
func (r *Registry) SavePlots(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.WrapTransient(err, "Registry", "SavePlots", "create plot directory")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for path, h := range r.h1 {
		p := hplot.New()
		p.Title.Text = r.name + "/" + path
		p.Y.Label.Text = "entries"
		p.Add(hplot.NewH1D(h))

		fname := filepath.Join(dir, r.name+"_"+flattenPath(path)+".png")
		if err := p.Save(plotWidth, -1, fname); err != nil {
			return errors.WrapTransient(err, "Registry", "SavePlots", "save "+path)
		}
	}

	return nil
}

func flattenPath(path string) string {
	return strings.ReplaceAll(path, "/", "_")
}
