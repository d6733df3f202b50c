package io

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/particle"
	"github.com/matzehuels/molplace/pkg/placement"
)

// Formats understood by Write.
const (
	FormatJSON = "json"
	FormatXYZ  = "xyz"
)

type document struct {
	Seed             uint64           `json:"seed"`
	Box              [3]float64       `json:"box"`
	LengthConversion float64          `json:"length_conversion"`
	Stats            *placement.Stats `json:"stats,omitempty"`
	Kinds            []particle.Kind  `json:"kinds"`
	Positions        []position       `json:"positions"`
}

type position struct {
	Kind     int        `json:"k"`
	Pos      [3]float64 `json:"p"`
	Molecule int        `json:"m"`
	InBulk   bool       `json:"bulk,omitempty"`
	InFrame  bool       `json:"frame,omitempty"`
}

// WriteJSON encodes res as JSON and writes it to w.
func WriteJSON(res *placement.Result, w io.Writer) error {
	doc := document{
		Seed:             res.Seed,
		Box:              [3]float64{res.Box.X, res.Box.Y, res.Box.Z},
		LengthConversion: res.LengthConversion,
		Stats:            &res.Stats,
		Positions:        make([]position, len(res.Positions)),
	}

	index := make(map[*particle.Kind]int)
	for i, p := range res.Positions {
		k, ok := index[p.Kind]
		if !ok {
			k = len(doc.Kinds)
			index[p.Kind] = k
			doc.Kinds = append(doc.Kinds, *p.Kind)
		}
		doc.Positions[i] = position{
			Kind:     k,
			Pos:      [3]float64{p.Pos.X, p.Pos.Y, p.Pos.Z},
			Molecule: p.MoleculeIndex,
			InBulk:   p.InBulk,
			InFrame:  p.InFrame,
		}
	}

	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteXYZ writes res in XYZ format.
func WriteXYZ(res *placement.Result, w io.Writer) error {
	scale := res.LengthConversion
	if scale == 0 {
		scale = 1
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(res.Positions))
	fmt.Fprintf(bw, "box=%.4f,%.4f,%.4f seed=%d\n", res.Box.X*scale, res.Box.Y*scale, res.Box.Z*scale, res.Seed)
	for _, p := range res.Positions {
		fmt.Fprintf(bw, "%s %.4f %.4f %.4f\n", p.Kind.Particle, p.Pos.X*scale, p.Pos.Y*scale, p.Pos.Z*scale)
	}
	return bw.Flush()
}

// Write encodes res in the named format.
func Write(res *placement.Result, format string, w io.Writer) error {
	switch format {
	case FormatJSON:
		return WriteJSON(res, w)
	case FormatXYZ:
		return WriteXYZ(res, w)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unsupported output format %q (must be json or xyz)", format)
}

// ExportJSON writes res to a JSON file at path.
func ExportJSON(res *placement.Result, path string) error {
	return export(res, FormatJSON, path)
}

// ExportXYZ writes res to an XYZ file at path.
func ExportXYZ(res *placement.Result, path string) error {
	return export(res, FormatXYZ, path)
}

func export(res *placement.Result, format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(res, format, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
