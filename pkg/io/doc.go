// Package io reads and writes placement results.
//
// # JSON Format
//
// Results are stored as a JSON object. Kinds are listed once and positions
// refer to them by index, so that large results stay compact:
//
//	{
//	  "seed": 42,
//	  "box": [20, 20, 20],
//	  "length_conversion": 1,
//	  "kinds": [
//	    {"particle": "W", "molecule": "W", "color": "#8c8c8c", "radius": 0.5}
//	  ],
//	  "positions": [
//	    {"k": 0, "p": [1.2, 3.4, 5.6], "m": 0, "bulk": true, "frame": true}
//	  ]
//	}
//
// Particle indices are implied by the order of the positions array.
//
// Use [WriteJSON] / [ExportJSON] to write a result and [ReadJSON] /
// [ImportJSON] to read one back. The imported result carries a catalog
// built from the stored kinds.
//
// # XYZ Format
//
// [WriteXYZ] writes the plain XYZ format most molecular viewers accept: the
// particle count, a comment line with the box and seed, then one
// "name x y z" line per particle. Coordinates are multiplied by the
// result's length conversion factor. XYZ output cannot be imported.
package io
