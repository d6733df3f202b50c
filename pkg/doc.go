// Package pkg provides the core libraries for molplace, a particle placement
// engine that builds starting structures for coarse-grained molecular
// dynamics.
//
// # Overview
//
// A composition lists molecules and where they go: N instances of a bead
// chain or a rigid protein, in the free volume of the box or inside or on the
// surface of a body (sphere, slab). molplace places every particle without
// overlaps and reports the positions in a contiguous, index-ordered array.
//
// # Architecture
//
// The data flow through molplace:
//
//	composition.toml
//	       ↓
//	  [composition] (decode, validate, resolve bodies)
//	       ↓
//	  [placement] (proteins first, then chains row by row)
//	       ↓            ↘
//	  [chain] [protein]  [geom] (bodies, exclusions, sampling)
//	       ↓
//	  [buffer] → [placement.Result]
//	       ↓
//	  [io] (JSON, XYZ)
//
// # Main Packages
//
// ## Placement
//
// [geom] - Vectors, periodic boxes, body shapes and the placement context
// that tracks excluded spheres.
//
// [topology] - Parses topology strings such as "H-L(S)-[T]3" into bond
// graphs; renders them with Graphviz.
//
// [chain] - Grows chains one bond at a time and corrects failed growths by
// shrinking them.
//
// [protein] - Generates rigid protein coordinates inside a target sphere.
//
// [placement] - The cancellable placement task with progress observers.
//
// [buffer] - Chunked position storage that grows without copying.
//
// ## Infrastructure
//
// [pipeline] - Load → place → encode, shared by the CLI and the HTTP API.
//
// [cache] - Placement caches: file (CLI), Redis (API), null.
//
// [store] - Run records: file (CLI), MongoDB (API), memory.
//
// [api] - HTTP API built on chi.
//
// [errors], [observability], [buildinfo] - Shared error codes, hooks and
// version information.
//
// # Quick Start
//
//	comp, _, err := composition.Load("vesicle.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := placement.Place(ctx, comp, comp.Catalog())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	io.WriteXYZ(res, os.Stdout)
//
// [geom]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/geom
// [topology]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/topology
// [chain]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/chain
// [protein]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/protein
// [placement]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/placement
// [placement.Result]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/placement#Result
// [buffer]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/buffer
// [composition]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/composition
// [io]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/io
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/store
// [api]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/api
// [errors]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/molplace/pkg/buildinfo
package pkg
