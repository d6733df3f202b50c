package placement

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/buffer"
	"github.com/matzehuels/molplace/pkg/chain"
	"github.com/matzehuels/molplace/pkg/composition"
	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/geom"
	"github.com/matzehuels/molplace/pkg/observability"
	"github.com/matzehuels/molplace/pkg/protein"
)

// run places every row. Positions are appended in processing order.
func (t *Task) run(ctx context.Context, total int) (*Result, error) {
	buf, err := buffer.New(t.growth)
	if err != nil {
		return nil, err
	}
	t.buf = buf
	t.order = t.comp.ProteinFirstOrder()
	t.placer = &chain.Placer{
		Grower:              t.grower,
		BondLength:          t.comp.BondLength,
		MaxCorrectionTrials: t.maxCorrections,
	}

	if t.external != nil {
		before := t.external.Snapshot()
		defer func() {
			t.external.Clear()
			for name, spheres := range before {
				t.external.SetExcluded(name, spheres)
			}
		}()
		t.pctx = t.external
	} else {
		t.pctx = geom.NewPlacementContext()
	}

	rng := geom.NewRand(t.comp.Seed)
	for _, i := range t.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := &t.comp.Rows[i]
		start := time.Now()
		placedBefore, correctionsBefore := t.stats.Placed, t.stats.Corrections

		if err := t.placeRow(ctx, row, total, rng); err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, row.Molecule, err)
		}

		placed := t.stats.Placed - placedBefore
		t.logger.Debug("placed row", "molecule", row.Molecule, "particles", placed,
			"corrections", t.stats.Corrections-correctionsBefore, "exclusions", t.pctx.Count())
		observability.Placement().OnRowComplete(ctx, row.Molecule, placed, t.stats.Corrections-correctionsBefore, time.Since(start))
		for _, o := range t.observers {
			if ro, ok := o.(RowObserver); ok {
				ro.OnRowComplete(row.Molecule, placed)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	positions := t.buf.SizedArray()
	if err := t.checkPositions(positions, total); err != nil {
		return nil, err
	}

	t.stats.Requested = total
	return &Result{
		Positions:        positions,
		Box:              t.comp.Box,
		LengthConversion: t.comp.LengthConversion,
		Catalog:          t.catalog,
		Stats:            t.stats,
		Seed:             t.comp.Seed,
	}, nil
}

// checkPositions verifies that every slot of the output is populated and
// that particle indices run contiguously from zero.
func (t *Task) checkPositions(positions []Position, total int) error {
	if want := total - t.stats.Skipped; len(positions) != want {
		return errors.New(errors.ErrCodeInternalInconsistency, "placed %d particles, expected %d", len(positions), want)
	}
	for i := range positions {
		if !positions[i].Valid() {
			return errors.New(errors.ErrCodeInternalInconsistency, "position %d was never populated", i)
		}
		if positions[i].ParticleIndex != i {
			return errors.New(errors.ErrCodeInternalInconsistency, "position %d carries particle index %d", i, positions[i].ParticleIndex)
		}
	}
	return nil
}

// placeRow dispatches one row to the branch matching its molecule kind and
// target region.
func (t *Task) placeRow(ctx context.Context, row *composition.Row, total int, rng *rand.Rand) error {
	body, ok := t.comp.Body(row.Body)
	if !ok {
		return errors.New(errors.ErrCodeMissingConfiguration, "no geometry for body %q", row.Body)
	}

	if row.IsProtein() {
		if err := t.placeProteinVolume(ctx, row, body, total, rng); err != nil {
			return err
		}
		return t.placeProteinSurface(ctx, row, body, total, rng)
	}

	topo := row.Structure()
	if topo == nil {
		return errors.New(errors.ErrCodeMissingConfiguration, "molecule %q has no parsed topology", row.Molecule)
	}
	if row.Volume > 0 {
		var err error
		if row.InBulk() {
			err = t.placeBulkChains(ctx, row, body, total, rng)
		} else {
			err = t.placeVolumeChains(ctx, row, body, total, rng)
		}
		if err != nil {
			return err
		}
	}
	return t.placeSurfaceChains(ctx, row, body, total, rng)
}

// =============================================================================
// Proteins
// =============================================================================

func (t *Task) proteinRadius(d *protein.Descriptor) float64 {
	if d.Radius > 0 {
		return d.Radius
	}
	return protein.EstimateRadius(d.Len(), t.comp.ParticleRadius)
}

func orientation(row *composition.Row) protein.Orientation {
	if row.RandomOrientation {
		return protein.OrientationRandom
	}
	return protein.OrientationFixed
}

// placeProteinVolume seats protein globules inside body and records each as
// an exclusion sphere. A single instance in a sphere compartment sits at the
// center when the center is free.
func (t *Task) placeProteinVolume(ctx context.Context, row *composition.Row, body geom.Body, total int, rng *rand.Rand) error {
	if row.Volume == 0 {
		return nil
	}
	radius := t.proteinRadius(row.Protein)

	var spheres []geom.Sphere
	if _, isSphere := body.(*geom.SphereBody); isSphere && row.Volume == 1 && geom.InFreeVolume(body, t.pctx, body.Center()) {
		spheres = []geom.Sphere{{Center: body.Center(), Radius: radius}}
	} else {
		spheres = geom.NonOverlappingRandomSpheres(body, t.pctx, row.Volume, radius, t.maxTrials, rng)
	}
	if missing := row.Volume - len(spheres); missing > 0 {
		err := errors.New(errors.ErrCodeGeometryExhausted, "seated %d of %d %s globules in %s", len(spheres), row.Volume, row.Protein.Name, body.Name())
		if err := t.unplaceable(row, missing, err); err != nil {
			return err
		}
	}

	for _, s := range spheres {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.pctx.Exclude(body.Name(), s)
		coords, err := t.proteins.Generate(row.Protein, s.Center, s.Radius, orientation(row), rng)
		if err != nil {
			return err
		}
		if err := t.appendMolecule(row, coords, false, total); err != nil {
			return err
		}
	}
	return nil
}

// placeProteinSurface centers protein globules on a face of body.
func (t *Task) placeProteinSurface(ctx context.Context, row *composition.Row, body geom.Body, total int, rng *rand.Rand) error {
	if row.Surface == 0 {
		return nil
	}
	radius := t.proteinRadius(row.Protein)
	centers, err := geom.FillRandomSurfacePoints(nil, body, row.Face, row.Surface, rng)
	if err != nil {
		return err
	}
	for _, c := range centers {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.pctx.Exclude(body.Name(), geom.Sphere{Center: c, Radius: radius})
		coords, err := t.proteins.Generate(row.Protein, c, radius, orientation(row), rng)
		if err != nil {
			return err
		}
		if err := t.appendMolecule(row, coords, false, total); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Chains
// =============================================================================

// placeVolumeChains grows chains between two free points of a compartment.
func (t *Task) placeVolumeChains(ctx context.Context, row *composition.Row, body geom.Body, total int, rng *rand.Rand) error {
	topo := row.Structure()
	for range row.Volume {
		if err := ctx.Err(); err != nil {
			return err
		}
		first, ok := geom.RandomVolumePoint(body, t.pctx, t.maxTrials, rng)
		last := first
		if ok && topo.Len() > 1 {
			last, ok = geom.RandomVolumePoint(body, t.pctx, t.maxTrials, rng)
		}
		if !ok {
			err := errors.New(errors.ErrCodeGeometryExhausted, "no free point in %s after %d trials", body.Name(), t.maxTrials)
			if err := t.unplaceable(row, 1, err); err != nil {
				return err
			}
			continue
		}
		coords, err := t.placer.Place(topo, first, last, rng)
		if err != nil {
			return err
		}
		if err := t.appendMolecule(row, coords, false, total); err != nil {
			return err
		}
	}
	return nil
}

// placeBulkChains grows chains in the bulk and repairs them until every
// particle lies in free volume.
func (t *Task) placeBulkChains(ctx context.Context, row *composition.Row, body geom.Body, total int, rng *rand.Rand) error {
	topo := row.Structure()
	free := geom.Region{Body: body, Ctx: t.pctx, MaxTrials: t.maxTrials}
	for range row.Volume {
		if err := ctx.Err(); err != nil {
			return err
		}
		first, ok := free.RandomFreePoint(rng)
		last := first
		if ok && topo.Len() > 1 {
			last, ok = free.RandomFreePoint(rng)
		}
		if !ok {
			err := errors.New(errors.ErrCodeGeometryExhausted, "no free bulk point after %d trials", t.maxTrials)
			if err := t.unplaceable(row, 1, err); err != nil {
				return err
			}
			continue
		}

		out, err := t.placer.PlaceBulk(ctx, topo, first, last, free, rng)
		t.stats.Corrections += out.Corrections()
		if err != nil {
			var failure *chain.Failure
			if stderrors.As(err, &failure) {
				if err := t.unplaceable(row, 1, failure); err != nil {
					return err
				}
				continue
			}
			return err
		}
		if err := t.appendMolecule(row, out.Positions, true, total); err != nil {
			return err
		}
	}
	return nil
}

// placeSurfaceChains anchors the first particle on a face of body and grows
// the chain towards the body's interior.
func (t *Task) placeSurfaceChains(ctx context.Context, row *composition.Row, body geom.Body, total int, rng *rand.Rand) error {
	if row.Surface == 0 {
		return nil
	}
	topo := row.Structure()
	firsts, err := geom.FillRandomSurfacePoints(nil, body, row.Face, row.Surface, rng)
	if err != nil {
		return err
	}
	span := t.comp.BondLength * float64(max(len(topo.Backbone)-1, 0))
	for _, first := range firsts {
		if err := ctx.Err(); err != nil {
			return err
		}
		last := inwards(first, body.Center(), span)
		coords, err := t.placer.Place(topo, first, last, rng)
		if err != nil {
			return err
		}
		if err := t.appendMolecule(row, coords, false, total); err != nil {
			return err
		}
	}
	return nil
}

// inwards returns the point span away from p towards center, stopping at
// center.
func inwards(p, center r3.Vec, span float64) r3.Vec {
	d := geom.Distance(p, center)
	if d == 0 || span <= 0 {
		return p
	}
	return geom.Lerp(p, center, min(1, span/d))
}

// =============================================================================
// Bookkeeping
// =============================================================================

// appendMolecule adds one molecule instance to the buffer.
func (t *Task) appendMolecule(row *composition.Row, coords []r3.Vec, inBulk bool, total int) error {
	names := row.Particles()
	if len(coords) != len(names) {
		return errors.New(errors.ErrCodeInternalInconsistency, "%s: got %d coordinates for %d particles", row.Molecule, len(coords), len(names))
	}
	for j, p := range coords {
		kind, err := t.catalog.Kind(row.Molecule, names[j])
		if err != nil {
			return errors.Wrap(errors.ErrCodeMissingConfiguration, err, "no catalog entry for %s/%s", row.Molecule, names[j])
		}
		var pos Position
		pos.Reset(p, kind, t.buf.Size(), t.molecule, inBulk, geom.InBox(p, t.comp.Box))
		t.buf.Add(pos)
	}
	t.molecule++
	t.stats.Placed += len(coords)
	t.advance(total)
	return nil
}

// unplaceable handles instances that could not be seated: with skipping
// enabled they are counted and the run continues, otherwise err is returned.
func (t *Task) unplaceable(row *composition.Row, instances int, err error) error {
	if !t.skipUnplaceable {
		return err
	}
	t.stats.Skipped += instances * row.ParticlesPerInstance()
	t.logger.Warn("skipped unplaceable molecules", "molecule", row.Molecule, "instances", instances, "reason", err)
	return nil
}
