package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
// This is the single source of truth for all default analysis parameters.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig represents the root configuration for an analysis run.
// Fields omitted from the JSON file retain their default values, so partial
// configs are safe.
type AnalysisConfig struct {
	// Quality filter params
	AllowedSamples []string `json:"allowed_samples,omitempty"`
	MaxTotalCounts *float64 `json:"max_total_counts,omitempty"`
	MaxPctMito     *float64 `json:"max_pct_mito,omitempty"`
	MitoPrefix     *string  `json:"mito_prefix,omitempty"`

	// Normalization and embedding params
	TargetSum     *float64 `json:"target_sum,omitempty"`
	VariableGenes *int     `json:"variable_genes,omitempty"`
	ScaleMax      *float64 `json:"scale_max,omitempty"`
	Components    *int     `json:"components,omitempty"`
	Neighbors     *int     `json:"neighbors,omitempty"`
	Resolution    *float64 `json:"resolution,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`

	// Marker analysis params. SampleA and SampleB name the two conditions
	// compared per cluster; the mean difference is reported as B - A.
	SampleA     *string `json:"sample_a,omitempty"`
	SampleB     *string `json:"sample_b,omitempty"`
	ThetaMarker *string `json:"theta_marker,omitempty"`
	GammaMarker *string `json:"gamma_marker,omitempty"`

	// Cluster ids for the theta/gamma highlight labels. These are chosen by
	// inspection of the marker dot plot, not derived algorithmically.
	ThetaCluster *int `json:"theta_cluster,omitempty"`
	GammaCluster *int `json:"gamma_cluster,omitempty"`

	// Canonical cell-type marker panel used for the annotation dot plot.
	MarkerPanel []string `json:"marker_panel,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
// Use LoadAnalysisConfig to load actual values from the defaults file.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file size.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical analysis defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.MaxTotalCounts != nil && *c.MaxTotalCounts <= 0 {
		return fmt.Errorf("max_total_counts must be positive, got %f", *c.MaxTotalCounts)
	}
	if c.MaxPctMito != nil {
		if *c.MaxPctMito < 0 || *c.MaxPctMito > 100 {
			return fmt.Errorf("max_pct_mito must be between 0 and 100, got %f", *c.MaxPctMito)
		}
	}
	if c.Components != nil && *c.Components < 2 {
		return fmt.Errorf("components must be at least 2, got %d", *c.Components)
	}
	if c.Neighbors != nil && *c.Neighbors < 1 {
		return fmt.Errorf("neighbors must be at least 1, got %d", *c.Neighbors)
	}
	if c.Resolution != nil && *c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %f", *c.Resolution)
	}
	if c.VariableGenes != nil && *c.VariableGenes < 1 {
		return fmt.Errorf("variable_genes must be at least 1, got %d", *c.VariableGenes)
	}
	for _, s := range c.AllowedSamples {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("allowed_samples must not contain empty labels")
		}
	}
	return nil
}

// GetAllowedSamples returns the sample inclusion set or the default.
func (c *AnalysisConfig) GetAllowedSamples() []string {
	if len(c.AllowedSamples) == 0 {
		return []string{"HC1", "SOR1"}
	}
	return c.AllowedSamples
}

// GetMaxTotalCounts returns the total transcript count ceiling or the default.
// Cells at or above this count are treated as suspected multiplets.
func (c *AnalysisConfig) GetMaxTotalCounts() float64 {
	if c.MaxTotalCounts == nil {
		return 35000
	}
	return *c.MaxTotalCounts
}

// GetMaxPctMito returns the mitochondrial percentage ceiling or the default.
func (c *AnalysisConfig) GetMaxPctMito() float64 {
	if c.MaxPctMito == nil {
		return 10
	}
	return *c.MaxPctMito
}

// GetMitoPrefix returns the gene-name prefix identifying mitochondrial genes.
func (c *AnalysisConfig) GetMitoPrefix() string {
	if c.MitoPrefix == nil {
		return "mt-"
	}
	return *c.MitoPrefix
}

// GetTargetSum returns the per-cell normalization target sum or the default.
func (c *AnalysisConfig) GetTargetSum() float64 {
	if c.TargetSum == nil {
		return 1e4
	}
	return *c.TargetSum
}

// GetVariableGenes returns the highly-variable-gene count or the default.
func (c *AnalysisConfig) GetVariableGenes() int {
	if c.VariableGenes == nil {
		return 2000
	}
	return *c.VariableGenes
}

// GetScaleMax returns the clip value applied after per-gene scaling.
func (c *AnalysisConfig) GetScaleMax() float64 {
	if c.ScaleMax == nil {
		return 10
	}
	return *c.ScaleMax
}

// GetComponents returns the number of principal components or the default.
func (c *AnalysisConfig) GetComponents() int {
	if c.Components == nil {
		return 20
	}
	return *c.Components
}

// GetNeighbors returns the neighbor count for the kNN graph or the default.
func (c *AnalysisConfig) GetNeighbors() int {
	if c.Neighbors == nil {
		return 15
	}
	return *c.Neighbors
}

// GetResolution returns the clustering resolution or the default.
func (c *AnalysisConfig) GetResolution() float64 {
	if c.Resolution == nil {
		return 0.5
	}
	return *c.Resolution
}

// GetSeed returns the random seed used for clustering and layout.
func (c *AnalysisConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 17
	}
	return *c.Seed
}

// GetSampleA returns the first comparison sample label or the default.
func (c *AnalysisConfig) GetSampleA() string {
	if c.SampleA == nil {
		return "HC1"
	}
	return *c.SampleA
}

// GetSampleB returns the second comparison sample label or the default.
func (c *AnalysisConfig) GetSampleB() string {
	if c.SampleB == nil {
		return "SOR1"
	}
	return *c.SampleB
}

// GetThetaMarker returns the theta-associated marker gene or the default.
func (c *AnalysisConfig) GetThetaMarker() string {
	if c.ThetaMarker == nil {
		return "Hcn1"
	}
	return *c.ThetaMarker
}

// GetGammaMarker returns the gamma-associated marker gene or the default.
func (c *AnalysisConfig) GetGammaMarker() string {
	if c.GammaMarker == nil {
		return "Pvalb"
	}
	return *c.GammaMarker
}

// GetThetaCluster returns the cluster id labelled as the theta population.
func (c *AnalysisConfig) GetThetaCluster() int {
	if c.ThetaCluster == nil {
		return 4
	}
	return *c.ThetaCluster
}

// GetGammaCluster returns the cluster id labelled as the gamma population.
func (c *AnalysisConfig) GetGammaCluster() int {
	if c.GammaCluster == nil {
		return 7
	}
	return *c.GammaCluster
}

// GetMarkerPanel returns the canonical cell-type marker panel or the default.
// The default covers pan-neuronal, glutamatergic, GABAergic and astrocyte
// markers for hippocampal tissue.
func (c *AnalysisConfig) GetMarkerPanel() []string {
	if len(c.MarkerPanel) == 0 {
		return []string{
			"Snap25", "Rbfox3", "Syt1", // pan-neuronal
			"Slc17a7", "Slc17a6", // glutamatergic
			"Gad1", "Gad2", "Slc32a1", // GABAergic
			"Aqp4", "Gja1", "Slc1a2", // astrocyte
		}
	}
	return c.MarkerPanel
}
