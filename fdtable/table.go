package fdtable

import "sync"

// Table is an ordered, read-only view over the particle rows of one
// chunk. Row positions are stable for the lifetime of the table; the
// global-index lookup is built lazily on first use.
type Table struct {
	rows []Particle

	once sync.Once
	byID map[int64]int
}

// NewTable wraps rows in a table view. The caller must not mutate
// rows after handing them over.
func NewTable(rows []Particle) *Table {
	return &Table{rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// At returns the row at the given table position, or nil if the
// position is out of range.
func (t *Table) At(pos int) *Particle {
	if pos < 0 || pos >= len(t.rows) {
		return nil
	}
	return &t.rows[pos]
}

func (t *Table) buildIndex() {
	t.byID = make(map[int64]int, len(t.rows))
	for i := range t.rows {
		t.byID[t.rows[i].GlobalIndex] = i
	}
}

// ByGlobalIndex returns the row with the given global index together
// with its table position.
func (t *Table) ByGlobalIndex(id int64) (*Particle, int, bool) {
	t.once.Do(t.buildIndex)
	pos, ok := t.byID[id]
	if !ok {
		return nil, 0, false
	}
	return &t.rows[pos], pos, true
}

// PositionOf returns the table position of the row with the given
// global index.
func (t *Table) PositionOf(id int64) (int, bool) {
	t.once.Do(t.buildIndex)
	pos, ok := t.byID[id]
	return pos, ok
}

// Entry pairs a particle row with its original table position.
type Entry struct {
	Part *Particle
	Pos  int
}

// Partition is a predicate-filtered view of a table. Entries keep
// their original table positions so that positional invariants of the
// underlying table remain checkable.
type Partition struct {
	table   *Table
	entries []Entry
}

// Partition builds a filtered view of the table. The view is computed
// once; the predicate is not re-evaluated afterwards.
func (t *Table) Partition(pred func(*Particle) bool) *Partition {
	p := &Partition{table: t}
	for i := range t.rows {
		if pred(&t.rows[i]) {
			p.entries = append(p.entries, Entry{Part: &t.rows[i], Pos: i})
		}
	}
	return p
}

// Len returns the number of rows in the partition.
func (p *Partition) Len() int {
	return len(p.entries)
}

// Entries returns the partition rows in table order.
func (p *Partition) Entries() []Entry {
	return p.entries
}

// SliceCache memoizes per-collision sub-slices of a partition.
// Repeated lookups for the same key within one processing pass return
// the previously computed slice without recomputation. The cache is
// scoped to one task instance; Reset must be called between chunks.
type SliceCache struct {
	mu     sync.Mutex
	slices map[int64][]Entry
}

// NewSliceCache returns an empty slice cache.
func NewSliceCache() *SliceCache {
	return &SliceCache{slices: make(map[int64][]Entry)}
}

// SliceByCached returns the entries of the partition whose collision
// index equals key, computing and caching the slice on first use.
func (c *SliceCache) SliceByCached(p *Partition, key int64) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slices[key]; ok {
		return s
	}

	var s []Entry
	for _, e := range p.entries {
		if e.Part.CollisionID == key {
			s = append(s, e)
		}
	}
	c.slices[key] = s
	return s
}

// Reset drops all cached slices. Call when a new chunk (and therefore
// a new underlying table) begins.
func (c *SliceCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slices = make(map[int64][]Entry)
}
