// Package interpolation provides deterministic multilinear interpolation of
// dose grids and the axis refinement used to search between native samples.
package interpolation

import "dosegamma/internal/models"

// Multilinear blends the corner doses of a grid cell
type Multilinear struct {
	grid    *models.DoseGrid
	strides []int
}

// NewMultilinear creates an interpolator for a validated grid
func NewMultilinear(grid *models.DoseGrid) *Multilinear {
	return &Multilinear{grid: grid, strides: grid.Strides()}
}

// Blend combines the 2^n corners of a cell with multilinear weights.
// Corners are visited in row-major order; corners with zero weight are
// never read, so a cell on the last sample of an axis is safe when its
// fraction is zero.
func (m *Multilinear) Blend(cell []int, frac []float64) float64 {
	n := len(cell)
	dose := m.grid.Dose
	sum := 0.0

	for corner := 0; corner < 1<<n; corner++ {
		w := 1.0
		flat := 0
		for d := 0; d < n; d++ {
			bit := (corner >> (n - 1 - d)) & 1
			if bit == 1 {
				w *= frac[d]
				if w == 0 {
					break
				}
				flat += (cell[d] + 1) * m.strides[d]
			} else {
				w *= 1 - frac[d]
				if w == 0 {
					break
				}
				flat += cell[d] * m.strides[d]
			}
		}
		if w == 0 {
			continue
		}
		sum += w * dose[flat]
	}
	return sum
}
