package fdtable

import (
	"encoding/json"
	"fmt"

	"github.com/c360/femtostream/errors"
)

// Chunk is one unit of work delivered by a source: a set of
// collisions plus the joined particle table for those collisions.
type Chunk struct {
	RunID      string     `json:"run_id,omitempty"`
	Collisions []Collision `json:"collisions"`
	Particles  []Particle  `json:"particles"`
}

// Validate checks internal consistency of the chunk: every particle
// must reference a collision present in the chunk.
func (c *Chunk) Validate() error {
	if len(c.Collisions) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidChunk, "Chunk", "Validate", "no collisions")
	}

	cols := make(map[int64]struct{}, len(c.Collisions))
	for i := range c.Collisions {
		cols[c.Collisions[i].GlobalIndex] = struct{}{}
	}

	for i := range c.Particles {
		if _, ok := cols[c.Particles[i].CollisionID]; !ok {
			return errors.WrapInvalid(
				fmt.Errorf("particle %d references collision %d: %w",
					c.Particles[i].GlobalIndex, c.Particles[i].CollisionID, errors.ErrUnknownCollision),
				"Chunk", "Validate", "collision reference check")
		}
	}

	return nil
}

// DecodeChunk parses and validates a JSON-encoded chunk.
func DecodeChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapInvalid(err, "Chunk", "DecodeChunk", "json unmarshal")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Table returns a table view over the chunk's particle rows.
func (c *Chunk) Table() *Table {
	return NewTable(c.Particles)
}
