package histbook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAxisSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		axis    AxisSpec
		wantErr bool
	}{
		{"valid", AxisSpec{Bins: 300, Min: 0.95, Max: 1.0}, false},
		{"zero bins", AxisSpec{Bins: 0, Min: 0, Max: 1}, true},
		{"negative bins", AxisSpec{Bins: -5, Min: 0, Max: 1}, true},
		{"inverted bounds", AxisSpec{Bins: 10, Min: 2, Max: 1}, true},
		{"equal bounds", AxisSpec{Bins: 10, Min: 1, Max: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.axis.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_BookAndFill(t *testing.T) {
	reg := New("FullPhiQA")

	h1, err := reg.H1D("Phi/hPt", AxisSpec{Bins: 240, Min: 0, Max: 6})
	require.NoError(t, err)
	h2, err := reg.H2D("Phi/hFitVarPt",
		AxisSpec{Bins: 20, Min: 0.5, Max: 4.05},
		AxisSpec{Bins: 300, Min: 0.95, Max: 1.0})
	require.NoError(t, err)

	h1.Fill(1.2, 1)
	h1.Fill(2.4, 1)
	h2.Fill(1.2, 0.98, 1)

	n, err := reg.Entries("Phi/hPt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = reg.Entries("Phi/hFitVarPt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []string{"Phi/hPt", "Phi/hFitVarPt"}, reg.Paths())
}

func TestRegistry_DuplicatePath(t *testing.T) {
	reg := New("Event")

	_, err := reg.H1D("zvtx", AxisSpec{Bins: 300, Min: -12.5, Max: 12.5})
	require.NoError(t, err)

	_, err = reg.H1D("zvtx", AxisSpec{Bins: 10, Min: 0, Max: 1})
	assert.Error(t, err)

	// A 2D histogram may not reuse a 1D path either.
	_, err = reg.H2D("zvtx", AxisSpec{Bins: 10, Min: 0, Max: 1}, AxisSpec{Bins: 10, Min: 0, Max: 1})
	assert.Error(t, err)
}

func TestRegistry_InvalidAxis(t *testing.T) {
	reg := New("Event")

	_, err := reg.H1D("bad", AxisSpec{Bins: 0, Min: 0, Max: 1})
	assert.Error(t, err)

	_, err = reg.H2D("bad2", AxisSpec{Bins: 10, Min: 0, Max: 1}, AxisSpec{Bins: 10, Min: 5, Max: 5})
	assert.Error(t, err)
}

func TestRegistry_EntriesUnknownPath(t *testing.T) {
	reg := New("Event")
	_, err := reg.Entries("missing")
	assert.Error(t, err)
}

func TestRegistry_WriteYODA(t *testing.T) {
	reg := New("Event")
	h, err := reg.H1D("zvtx", AxisSpec{Bins: 10, Min: -10, Max: 10})
	require.NoError(t, err)
	_, err = reg.H2D("multVsZ", AxisSpec{Bins: 5, Min: 0, Max: 5}, AxisSpec{Bins: 5, Min: 0, Max: 5})
	require.NoError(t, err)

	h.Fill(1.5, 1)

	var buf bytes.Buffer
	require.NoError(t, reg.WriteYODA(&buf))

	out := buf.String()
	assert.Contains(t, out, "/Event/zvtx")
	assert.Contains(t, out, "/Event/multVsZ")
	// One YODA block per booked histogram.
	assert.Equal(t, 2, strings.Count(out, "BEGIN YODA_"))
}

func TestRegistry_SavePlots(t *testing.T) {
	reg := New("Event")
	h, err := reg.H1D("zvtx", AxisSpec{Bins: 10, Min: -10, Max: 10})
	require.NoError(t, err)
	h.Fill(0.5, 1)

	dir := t.TempDir()
	require.NoError(t, reg.SavePlots(dir))

	assert.FileExists(t, dir+"/Event_zvtx.png")
}
