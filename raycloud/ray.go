// Package raycloud holds ray clouds: lidar samples kept as full rays from the
// sensor origin to the return point, with a time and a colour. A ray whose
// colour has zero alpha is unbounded: the sensor saw nothing along it and its
// end is only a far point in the ray direction.
package raycloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// Ray is a single lidar sample.
type Ray struct {
	Start r3.Vector
	End   r3.Vector
	Time  float64
	Color color.NRGBA
}

// Bounded reports whether the ray ended on a real return.
func (r Ray) Bounded() bool {
	return r.Color.A != 0
}

// Vector returns End - Start.
func (r Ray) Vector() r3.Vector {
	return r.End.Sub(r.Start)
}

// Chunk is a batch of rays stored as four lockstep sequences.
type Chunk struct {
	Starts []r3.Vector
	Ends   []r3.Vector
	Times  []float64
	Colors []color.NRGBA
}

// NewChunk returns an empty chunk with room for capacity rays.
func NewChunk(capacity int) *Chunk {
	return &Chunk{
		Starts: make([]r3.Vector, 0, capacity),
		Ends:   make([]r3.Vector, 0, capacity),
		Times:  make([]float64, 0, capacity),
		Colors: make([]color.NRGBA, 0, capacity),
	}
}

// Len returns the number of rays in the chunk.
func (c *Chunk) Len() int {
	return len(c.Ends)
}

// Bounded reports whether ray i ended on a real return.
func (c *Chunk) Bounded(i int) bool {
	return c.Colors[i].A != 0
}

// Ray returns ray i.
func (c *Chunk) Ray(i int) Ray {
	return Ray{Start: c.Starts[i], End: c.Ends[i], Time: c.Times[i], Color: c.Colors[i]}
}

// Append adds r to the end of the chunk.
func (c *Chunk) Append(r Ray) {
	c.Starts = append(c.Starts, r.Start)
	c.Ends = append(c.Ends, r.End)
	c.Times = append(c.Times, r.Time)
	c.Colors = append(c.Colors, r.Color)
}

// Reset empties the chunk, keeping its storage.
func (c *Chunk) Reset() {
	c.Starts = c.Starts[:0]
	c.Ends = c.Ends[:0]
	c.Times = c.Times[:0]
	c.Colors = c.Colors[:0]
}

func (c *Chunk) slice(from, to int) *Chunk {
	return &Chunk{
		Starts: c.Starts[from:to:to],
		Ends:   c.Ends[from:to:to],
		Times:  c.Times[from:to:to],
		Colors: c.Colors[from:to:to],
	}
}
