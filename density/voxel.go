// Package density estimates per voxel hit densities by walking rays through a
// uniform grid, and renders them as images.
package density

// Voxel accumulates the evidence of the rays passing through one voxel. Lengths
// are in cloud units.
type Voxel struct {
	Hits       float32
	Rays       float32
	MissLength float32
	HitLength  float32
}

// AddMiss records a ray passing through the voxel over length.
func (v *Voxel) AddMiss(length float32) {
	v.Rays++
	v.MissLength += length
}

// AddHit records a ray ending in the voxel after length.
func (v *Voxel) AddHit(length float32) {
	v.Hits++
	v.Rays++
	v.HitLength += length
}

// Add accumulates o into v.
func (v *Voxel) Add(o Voxel) {
	v.Hits += o.Hits
	v.Rays += o.Rays
	v.MissLength += o.MissLength
	v.HitLength += o.HitLength
}

// AddScaled accumulates o weighted by s into v.
func (v *Voxel) AddScaled(o Voxel, s float32) {
	v.Add(o.Scaled(s))
}

// Scaled returns v with every field multiplied by s.
func (v Voxel) Scaled(s float32) Voxel {
	return Voxel{
		Hits:       v.Hits * s,
		Rays:       v.Rays * s,
		MissLength: v.MissLength * s,
		HitLength:  v.HitLength * s,
	}
}

// NumRays is the weighted number of rays that reached the voxel.
func (v Voxel) NumRays() float32 {
	return v.Rays
}

// NumHits is the weighted number of rays that ended in the voxel.
func (v Voxel) NumHits() float32 {
	return v.Hits
}

// PathLength is the total length of ray inside the voxel.
func (v Voxel) PathLength() float32 {
	return v.MissLength + v.HitLength
}

// Density is the number of hits per unit of ray length, or 0 for a voxel no
// ray passed through.
func (v Voxel) Density() float64 {
	length := v.PathLength()
	if length == 0 {
		return 0
	}
	return float64(v.Hits / length)
}
