package fdtable

// ParticleType tags a row in the derived candidate table.
type ParticleType uint8

const (
	// ParticleTrack is a primary charged track
	ParticleTrack ParticleType = iota
	// ParticleV0 is a reconstructed V0 candidate
	ParticleV0
	// ParticleV0Child is a decay daughter of a V0 candidate
	ParticleV0Child
	// ParticleCascade is a reconstructed cascade candidate
	ParticleCascade
	// ParticleCascadeBachelor is the bachelor track of a cascade
	ParticleCascadeBachelor
	// ParticlePhi is a reconstructed Phi-meson candidate
	ParticlePhi
	// ParticlePhiChild is a decay daughter of a Phi candidate
	ParticlePhiChild
)

// String returns a string representation of the particle type
func (pt ParticleType) String() string {
	switch pt {
	case ParticleTrack:
		return "track"
	case ParticleV0:
		return "v0"
	case ParticleV0Child:
		return "v0-child"
	case ParticleCascade:
		return "cascade"
	case ParticleCascadeBachelor:
		return "cascade-bachelor"
	case ParticlePhi:
		return "phi"
	case ParticlePhiChild:
		return "phi-child"
	default:
		return "unknown"
	}
}

// Collision is one reconstructed event. Rows are read-only snapshots
// supplied per chunk; tasks never mutate them.
type Collision struct {
	GlobalIndex int64   `json:"global_index"`
	PosZ        float64 `json:"pos_z"`     // primary vertex z position (cm)
	MultV0M     float64 `json:"mult_v0m"`  // V0M multiplicity estimator
	MultNtr     int     `json:"mult_ntr"`  // number of tracks in the multiplicity estimate
	Sphericity  float64 `json:"sphericity"`
	MagField    float64 `json:"mag_field"` // solenoid field (T)
}

// Particle is one row of the joined candidate table. Composite
// candidates (Phi) carry the global indices of their decay children
// in ChildIDs, positive child first.
type Particle struct {
	GlobalIndex int64        `json:"global_index"`
	CollisionID int64        `json:"collision_id"`
	Type        ParticleType `json:"type"`
	Cut         uint32       `json:"cut"`     // selection bitmask from the cut container
	PIDCut      uint32       `json:"pid_cut"` // bit-packed PID n-sigma summary
	Pt          float64      `json:"pt"`
	Eta         float64      `json:"eta"`
	Phi         float64      `json:"phi"`
	P           float64      `json:"p"`
	TempFitVar  float64      `json:"temp_fit_var"` // invariant mass for composites, DCAxy for tracks
	ChildIDs    []int64      `json:"child_ids,omitempty"`
}

// HasChildren reports whether this row links to decay children.
func (p *Particle) HasChildren() bool {
	return len(p.ChildIDs) > 0
}
