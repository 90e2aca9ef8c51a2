// Package gridio reads and writes dose grids and gamma results as YAML.
// Arrays are stored flat in row-major order next to their axis coordinates;
// NaN marks gamma map cells that were not evaluated.
package gridio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dosegamma/internal/models"
	"dosegamma/pkg/gamma"
)

// doseFile is the YAML layout of a dose grid
type doseFile struct {
	Units string      `yaml:"units,omitempty"`
	Axes  [][]float64 `yaml:"axes,flow"`
	Dose  []float64   `yaml:"dose,flow"`
}

// Report is the YAML layout of a gamma result
type Report struct {
	// ID identifies the comparison run
	ID string `yaml:"id,omitempty"`

	Reference  string `yaml:"reference,omitempty"`
	Evaluation string `yaml:"evaluation,omitempty"`

	Axes      [][]float64     `yaml:"axes,flow"`
	Gamma     []float64       `yaml:"gamma,flow"`
	Summary   gamma.Summary   `yaml:"summary"`
	Histogram gamma.Histogram `yaml:"histogram,flow"`
	Metadata  gamma.Metadata  `yaml:"metadata"`
}

// NewReport builds a report from a result
func NewReport(id string, res *gamma.Result) *Report {
	return &Report{
		ID:        id,
		Axes:      res.Map.Axes,
		Gamma:     res.Map.Values,
		Summary:   res.Summary,
		Histogram: res.Histogram,
		Metadata:  res.Metadata,
	}
}

// Map returns the gamma map stored in the report
func (r *Report) Map() *gamma.Map {
	return &gamma.Map{Axes: r.Axes, Values: r.Gamma}
}

// ReadDoseGrid decodes and validates a dose grid
func ReadDoseGrid(r io.Reader) (*models.DoseGrid, error) {
	var f doseFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("error parsing dose grid: %w", err)
	}
	g := &models.DoseGrid{Axes: f.Axes, Dose: f.Dose, Units: f.Units}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadDoseGrid reads a dose grid from a YAML file
func LoadDoseGrid(path string) (*models.DoseGrid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	g, err := ReadDoseGrid(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// WriteDoseGrid encodes a dose grid
func WriteDoseGrid(w io.Writer, g *models.DoseGrid) error {
	return encode(w, doseFile{Units: g.Units, Axes: g.Axes, Dose: g.Dose})
}

// SaveDoseGrid writes a dose grid to a YAML file, creating parent directories
func SaveDoseGrid(path string, g *models.DoseGrid) error {
	return save(path, func(w io.Writer) error { return WriteDoseGrid(w, g) })
}

// ReadReport decodes a gamma report
func ReadReport(r io.Reader) (*Report, error) {
	var rep Report
	if err := yaml.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("error parsing gamma report: %w", err)
	}
	size := 1
	for _, axis := range rep.Axes {
		size *= len(axis)
	}
	if len(rep.Axes) == 0 || size != len(rep.Gamma) {
		return nil, fmt.Errorf("gamma report has %d values for %d axes", len(rep.Gamma), len(rep.Axes))
	}
	return &rep, nil
}

// LoadReport reads a gamma report from a YAML file
func LoadReport(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadReport(file)
}

// WriteReport encodes a gamma report
func WriteReport(w io.Writer, rep *Report) error {
	return encode(w, rep)
}

// SaveReport writes a gamma report to a YAML file, creating parent directories
func SaveReport(path string, rep *Report) error {
	return save(path, func(w io.Writer) error { return WriteReport(w, rep) })
}

func encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error marshaling yaml: %w", err)
	}
	return enc.Close()
}

func save(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
