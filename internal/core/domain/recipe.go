package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Runtime identifies which Dockerfile template a recipe renders with.
type Runtime string

const (
	RuntimePython Runtime = "python"
	RuntimeGo     Runtime = "go"
)

// Recipe describes how to assemble and launch an application image:
// base runtime, OS-level packages, the dependency manifest, the application
// entry point and the port the supervised server binds.
type Recipe struct {
	Runtime        Runtime  `yaml:"runtime"`
	BaseImage      string   `yaml:"base_image"`
	SystemPackages []string `yaml:"system_packages"`
	// RebuildFontCache runs fc-cache after the system packages are installed,
	// so copied CJK fonts are visible to the application.
	RebuildFontCache bool   `yaml:"rebuild_font_cache"`
	Manifest         string `yaml:"manifest"`
	// Module and Object name the importable application entry point,
	// e.g. bot_server:app.
	Module  string `yaml:"module"`
	Object  string `yaml:"object"`
	Port    int    `yaml:"port"`
	Workers int    `yaml:"workers"`
}

// DefaultPort is the fallback port when neither the recipe nor the PORT
// environment variable of the running container says otherwise.
const DefaultPort = 10000

// DefaultRecipe is the attendance bot server image: slim Python base,
// fontconfig plus the Noto CJK set for chart text, pip manifest, gunicorn
// supervising bot_server:app.
func DefaultRecipe() Recipe {
	return Recipe{
		Runtime:          RuntimePython,
		BaseImage:        "python:3.11-slim",
		SystemPackages:   []string{"fontconfig", "fonts-noto-cjk"},
		RebuildFontCache: true,
		Manifest:         "requirements.txt",
		Module:           "bot_server",
		Object:           "app",
		Port:             DefaultPort,
	}
}

// LoadRecipe reads a recipe file and fills unset fields from the default
// recipe. A missing file is not an error: the default recipe is returned.
func LoadRecipe(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRecipe(), nil
	}
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to read recipe: %w", err)
	}

	r := DefaultRecipe()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Recipe{}, fmt.Errorf("failed to parse recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// Validate rejects recipes that cannot produce a runnable image.
func (r Recipe) Validate() error {
	switch r.Runtime {
	case RuntimePython, RuntimeGo:
	default:
		return fmt.Errorf("unknown runtime %q", r.Runtime)
	}
	if r.BaseImage == "" {
		return fmt.Errorf("base image is required")
	}
	if r.Manifest == "" {
		return fmt.Errorf("dependency manifest is required")
	}
	if r.Module == "" || r.Object == "" {
		return fmt.Errorf("application entry point (module:object) is required")
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("invalid port %d", r.Port)
	}
	return nil
}

// EntryPoint returns the module:object form the process supervisor imports.
func (r Recipe) EntryPoint() string {
	return r.Module + ":" + r.Object
}
