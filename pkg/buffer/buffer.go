// Package buffer provides a chunked, append-only container for particle
// positions.
//
// Placement runs append millions of records one at a time. A plain slice
// would copy its whole backing array every time it outgrows its capacity;
// [Buffer] instead allocates a new fixed-size chunk and leaves earlier
// chunks in place. A flat view is only built when [Buffer.SizedArray] is
// called, and only if the data spans more than one chunk.
//
// # Usage
//
//	buf, err := buffer.New(1 << 14)
//	if err != nil {
//	    return err
//	}
//	for _, p := range positions {
//	    buf.Add(p)
//	}
//	flat := buf.SizedArray() // len(flat) == buf.Size()
//
// A Buffer has a single writer. It is not safe for concurrent use.
package buffer

import (
	"iter"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/particle"
)

// Buffer is a growable sequence of particle positions stored in chunks.
//
// Invariants:
//   - size is the exact number of valid entries
//   - every chunk except the current one is full
//   - consolidated is true when all live entries sit in chunks[0]
type Buffer struct {
	growth       int
	chunks       [][]particle.Position
	current      int // index of the chunk receiving the next Add
	fill         int // number of entries written to chunks[current]
	size         int
	consolidated bool
}

// New creates an empty buffer that grows by growth entries at a time.
// A growth increment below 1 is a configuration error.
func New(growth int) (*Buffer, error) {
	if growth < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "growth increment must be at least 1, got %d", growth)
	}
	return &Buffer{
		growth:       growth,
		chunks:       [][]particle.Position{make([]particle.Position, growth)},
		consolidated: true,
	}, nil
}

// Growth returns the growth increment the buffer was created with.
func (b *Buffer) Growth() int { return b.growth }

// Size returns the number of entries added since creation or the last Reset.
func (b *Buffer) Size() int { return b.size }

// ChunkCount returns the number of chunks currently holding live entries.
func (b *Buffer) ChunkCount() int {
	if b.size == 0 {
		return 0
	}
	return b.current + 1
}

// Add appends p. It never copies previously written chunks. No range checks
// are performed on p.
func (b *Buffer) Add(p particle.Position) {
	if b.fill == len(b.chunks[b.current]) {
		b.current++
		if b.current == len(b.chunks) {
			b.chunks = append(b.chunks, make([]particle.Position, b.growth))
		}
		b.fill = 0
		b.consolidated = false
	}
	b.chunks[b.current][b.fill] = p
	b.fill++
	b.size++
}

// At returns the i-th entry. It panics if i is out of range.
func (b *Buffer) At(i int) particle.Position {
	if i < 0 || i >= b.size {
		panic("buffer: index out of range")
	}
	for _, c := range b.chunks {
		if i < len(c) {
			return c[i]
		}
		i -= len(c)
	}
	panic("buffer: corrupted chunk list")
}

// Reset logically empties the buffer. Chunks are kept for reuse.
//
// Views previously returned by SizedArray share storage with the buffer and
// will be overwritten by subsequent calls to Add.
func (b *Buffer) Reset() {
	b.current = 0
	b.fill = 0
	b.size = 0
	b.consolidated = true
}

// SizedArray returns a slice of exactly Size entries in insertion order.
//
// When the entries span more than one chunk they are first merged into a
// single backing array, which then replaces the chunk list. The returned
// slice shares storage with the buffer.
func (b *Buffer) SizedArray() []particle.Position {
	if !b.consolidated {
		b.consolidate()
	}
	return b.chunks[0][:b.size:b.size]
}

// consolidate merges all live entries into one contiguous chunk.
func (b *Buffer) consolidate() {
	flat := make([]particle.Position, b.size)
	n := 0
	for i := 0; i <= b.current; i++ {
		c := b.chunks[i]
		if i == b.current {
			c = c[:b.fill]
		}
		n += copy(flat[n:], c)
	}
	b.chunks = [][]particle.Position{flat}
	b.current = 0
	b.fill = b.size
	b.consolidated = true
}

// Clone returns a deep copy of every live entry in a new buffer with the same
// growth increment. Entries are copied by value; Kind descriptors stay shared.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		growth:       b.growth,
		chunks:       [][]particle.Position{make([]particle.Position, max(b.growth, b.size))},
		consolidated: true,
	}
	for _, p := range b.All() {
		c.Add(p)
	}
	return c
}

// All iterates over the live entries in insertion order.
func (b *Buffer) All() iter.Seq2[int, particle.Position] {
	return func(yield func(int, particle.Position) bool) {
		idx := 0
		for i := 0; i <= b.current && idx < b.size; i++ {
			c := b.chunks[i]
			if i == b.current {
				c = c[:b.fill]
			}
			for _, p := range c {
				if !yield(idx, p) {
					return
				}
				idx++
			}
		}
	}
}
