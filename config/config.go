// Package config loads the YAML scene/solver configuration a headless run
// needs: grid geometry, timestep, obstacle/liquid geometry and which
// Preconditioner to drive the pressure solve with. Grounded on
// pthm-soup/config's go:embed-defaults-plus-override-file pattern.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Preconditioner names the Preconditioner a Scene selects by name, one of
// the four spec.md §4.5.2 enumerates.
type Preconditioner string

const (
	PreconditionerDiagonal          Preconditioner = "diagonal"
	PreconditionerIncompletePoisson Preconditioner = "incomplete_poisson"
	PreconditionerGaussSeidel       Preconditioner = "gauss_seidel"
	PreconditionerMultigrid         Preconditioner = "multigrid"
)

// GridConfig describes the simulation domain.
type GridConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	DT     float64 `yaml:"dt"`
}

// SolverConfig selects and parameterizes the pressure solve.
type SolverConfig struct {
	Preconditioner    Preconditioner `yaml:"preconditioner"`
	GaussSeidelSweeps int            `yaml:"gauss_seidel_sweeps"`
}

// Circle is a circular obstacle or liquid seed region in grid units.
type Circle struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// SceneConfig describes the obstacles and initial liquid region a scene
// starts from.
type SceneConfig struct {
	Obstacles       []Circle `yaml:"obstacles"`
	LiquidRegions   []Circle `yaml:"liquid_regions"`
	ParticlesPerCell int     `yaml:"particles_per_cell"`
}

// Scene is the full set of parameters a headless run is configured with.
type Scene struct {
	Grid   GridConfig   `yaml:"grid"`
	Solver SolverConfig `yaml:"solver"`
	Scene  SceneConfig  `yaml:"scene"`

	Derived DerivedConfig `yaml:"-"`
}

// DerivedConfig holds values computed from the loaded Scene once, rather
// than re-derived by every caller.
type DerivedConfig struct {
	DT32 float32
}

// Load reads a Scene from path, merging it over the embedded defaults. An
// empty path returns the embedded defaults unmodified.
func Load(path string) (*Scene, error) {
	scene := &Scene{}
	if err := yaml.Unmarshal(defaultsYAML, scene); err != nil {
		return nil, fmt.Errorf("config: parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, scene); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	scene.computeDerived()
	return scene, nil
}

func (s *Scene) computeDerived() {
	s.Derived.DT32 = float32(s.Grid.DT)
}
