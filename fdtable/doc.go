// Package fdtable provides the columnar data model consumed by
// analysis tasks: collision records, particle candidate rows, ordered
// table views with global-index lookup, typed partitions, and a
// per-collision slice cache.
//
// All views are read-only snapshots over the rows of one chunk. A
// composite candidate stores its decay children's global indices; by
// upstream table-builder convention the children also sit at the two
// table positions immediately preceding their parent (positive child
// at position-2, negative at position-1). Consumers resolve children
// by global index and use the positional convention only as a
// consistency check.
package fdtable
