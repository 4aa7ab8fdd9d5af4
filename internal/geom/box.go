package geom

import "fmt"

// Box is an axis-aligned 3D bounding box with inclusive faces.
type Box struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewBox validates min <= max on every axis.
func NewBox(minX, maxX, minY, maxY, minZ, maxZ float64) (Box, error) {
	b := Box{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY, MinZ: minZ, MaxZ: maxZ}
	if minX > maxX || minY > maxY || minZ > maxZ {
		return Box{}, fmt.Errorf("inverted box bounds: %+v", b)
	}
	return b, nil
}

// Contains reports whether the point lies inside the box. Points on a face count.
func (b Box) Contains(x, y, z float64) bool {
	return x >= b.MinX && x <= b.MaxX &&
		y >= b.MinY && y <= b.MaxY &&
		z >= b.MinZ && z <= b.MaxZ
}

// ClosestPoint clamps the given point onto the box, per axis.
func (b Box) ClosestPoint(x, y, z float64) (float64, float64, float64) {
	return clamp(x, b.MinX, b.MaxX), clamp(y, b.MinY, b.MaxY), clamp(z, b.MinZ, b.MaxZ)
}

// Intersects reports whether the two boxes overlap. Touching faces count.
func (b Box) Intersects(other Box) bool {
	return !(b.MaxX < other.MinX || b.MinX > other.MaxX ||
		b.MaxY < other.MinY || b.MinY > other.MaxY ||
		b.MaxZ < other.MinZ || b.MinZ > other.MaxZ)
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2, (b.MinZ + b.MaxZ) / 2
}

// Size returns the extent of the box along each axis.
func (b Box) Size() (float64, float64, float64) {
	return b.MaxX - b.MinX, b.MaxY - b.MinY, b.MaxZ - b.MinZ
}

// Translate shifts the box in place.
func (b *Box) Translate(dx, dy, dz float64) {
	b.MinX += dx
	b.MaxX += dx
	b.MinY += dy
	b.MaxY += dy
	b.MinZ += dz
	b.MaxZ += dz
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
