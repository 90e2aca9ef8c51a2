package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"dosegamma/pkg/gamma"
)

var (
	// NotEvaluated colours cells below the dose cutoff
	NotEvaluated = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// Viewer renders planes of a gamma map. Maps with fewer than three axes
// are treated as having leading axes of length one, so a 2D map is a single
// z plane and a 1D map a single row.
type Viewer struct {
	values []float64

	// dimensions of the map
	width  int
	height int
	depth  int

	// maxGamma is the top of the failing colour scale
	maxGamma float64
}

// NewViewer creates a viewer for a gamma map. Gamma values at or above
// maxGamma get the strongest failing colour.
func NewViewer(m *gamma.Map, maxGamma float64) (*Viewer, error) {
	shape := m.Shape()
	if len(shape) == 0 || len(shape) > 3 {
		return nil, fmt.Errorf("cannot view a gamma map with %d axes", len(shape))
	}

	dims := []int{1, 1, 1}
	copy(dims[3-len(shape):], shape)
	if dims[0]*dims[1]*dims[2] != len(m.Values) {
		return nil, fmt.Errorf("gamma map has %d values for shape %v", len(m.Values), shape)
	}

	return &Viewer{
		values:   m.Values,
		depth:    dims[0],
		height:   dims[1],
		width:    dims[2],
		maxGamma: maxGamma,
	}, nil
}

// Color maps a gamma value to a pixel colour: green shades for passing
// values, red shades for failing ones and gray for NaN.
func (v *Viewer) Color(g float64) color.RGBA {
	if math.IsNaN(g) {
		return NotEvaluated
	}
	if g <= 1 {
		return color.RGBA{G: uint8(255 - math.Round(math.Max(g, 0)*127)), A: 255}
	}

	t := 1.0
	if v.maxGamma > 1 && !math.IsInf(v.maxGamma, 1) {
		t = math.Min((g-1)/(v.maxGamma-1), 1)
	}
	return color.RGBA{R: uint8(128 + math.Round(t*127)), A: 255}
}

// ExtractSlice extracts the plane perpendicular to the given axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.RGBA

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetRGBA(z, y, v.Color(v.at(z, y, position)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetRGBA(x, z, v.Color(v.at(z, position, x)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetRGBA(x, y, v.Color(v.at(position, y, x)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func (v *Viewer) at(z, y, x int) float64 {
	return v.values[z*v.width*v.height+y*v.width+x]
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("gamma_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
