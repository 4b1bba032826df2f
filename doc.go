// Package femtostream is a QA pipeline for femtoscopy derived data.
// It reads chunks of reconstructed collisions joined with their
// candidate particle tables, runs configurable analysis tasks over
// every collision, and writes the booked histograms as YODA files at
// the end of the run.
//
// # Architecture
//
// A run is one pass of a chunk source through the workflow engine:
//
//	┌─────────────────────────────────────┐
//	│         Chunk Source                │  file (JSON lines) or
//	│  (source/file, source/natschunk)    │  NATS subject
//	└────────────────┬────────────────────┘
//	                 ↓
//	┌─────────────────────────────────────┐
//	│        Workflow Engine              │  worker pool, per-task
//	│          (workflow)                 │  serialization
//	└────────────────┬────────────────────┘
//	                 ↓
//	┌─────────────────────────────────────┐
//	│        Analysis Tasks               │  BeginChunk, then
//	│     (analysis/debugphi, ...)        │  ProcessCollision per event
//	└────────────────┬────────────────────┘
//	                 ↓
//	┌─────────────────────────────────────┐
//	│        Histogram Output             │  YODA files, optional
//	│    (histbook, output/yoda)          │  PNG plots
//	└─────────────────────────────────────┘
//
// # Packages
//
// Data model:
//   - fdtable: collision and particle rows, chunk decoding, table
//     views with partitions and per-collision slice caching
//
// Analysis:
//   - histbook: named histogram registries over go-hep hbook
//   - qa: event and particle histogram delegates, PID selection
//   - task: the analysis-task contract and factory registry
//   - analysis/debugphi: QA of Phi candidates and their children
//
// Infrastructure:
//   - workflow: the run engine
//   - config: configuration loading and schema validation
//   - source/file, source/natschunk: chunk sources
//   - natsclient: NATS connection management
//   - output/yoda: end-of-run histogram output
//   - metric: Prometheus metrics
//   - errors: classified error handling
//   - pkg/worker: generic worker pool
//
// # Binary
//
// Build and run the pipeline:
//
//	go build ./cmd/femtostream
//	./femtostream --config configs/pipeline.yaml
//
// Tasks are selected and configured in the tasks section of the
// configuration; each task's payload is validated against the JSON
// schema its factory registers.
package femtostream
