// Package geom provides the body shapes the placement engine samples from.
//
// # Bodies
//
// A [Body] is a region of the simulation box with its own sampling rules:
//
//   - [SphereBody]: a spherical compartment
//   - [LayerBody]: an axis-aligned slab spanning the box in x and y
//   - [BulkBody]: the box minus every compartment body
//
// # Exclusions
//
// Seated protein globules claim spherical regions that later samples must
// avoid. Those exclusion spheres are not stored on the bodies: they live in a
// [PlacementContext] created for one placement run and dropped at its end, so
// no state carries over between runs and bodies can be shared read-only.
//
// # Sampling
//
// [RandomVolumePoint], [FillRandomVolumePoints] and [FillRandomSurfacePoints]
// draw points from a body; [NonOverlappingRandomSpheres] seats spheres by
// rejection sampling and returns fewer than requested when it runs out of
// trials. [InFreeVolume] is the membership test used by chain correction.
//
// All sampling draws from a caller-supplied *rand.Rand in a fixed order, so
// a seeded generator yields reproducible results.
package geom
