package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical codec defaults file.
// This is the single source of truth for all default codec values.
const DefaultConfigPath = "config/codec.defaults.json"

// CodecConfig represents the root configuration for the codec and the
// benchmark harness. Every field is optional; Get* accessors fall back to
// the built-in defaults for fields left unset.
type CodecConfig struct {
	// Network shape
	Channels   *int `json:"channels,omitempty"`
	KernelSize *int `json:"kernel_size,omitempty"`
	ParamSeed  *int `json:"param_seed,omitempty"`

	// Pyramid and bit cost
	MinLevelPoints  *int     `json:"min_level_points,omitempty"`
	MaxSymbolBits   *float64 `json:"max_symbol_bits,omitempty"`
	VerifyExpansion *bool    `json:"verify_expansion,omitempty"`

	// Point input
	QuantizationStep   *float64 `json:"quantization_step,omitempty"`
	QuantizationOffset *int     `json:"quantization_offset,omitempty"`
	PointStride        *int     `json:"point_stride,omitempty"`

	// Reattachment
	ReattachThreshold *float64 `json:"reattach_threshold,omitempty"`

	// Harness
	Workers     *int    `json:"workers,omitempty"`
	FileTimeout *string `json:"file_timeout,omitempty"` // duration string like "2m"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCodecConfig returns a CodecConfig with all fields set to nil.
// Use LoadCodecConfig to load actual values from the defaults file.
func EmptyCodecConfig() *CodecConfig {
	return &CodecConfig{}
}

// LoadCodecConfig loads a CodecConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to their defaults, so
// partial configs are safe.
func LoadCodecConfig(path string) (*CodecConfig, error) {
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

	cfg := EmptyCodecConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical codec defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *CodecConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/codec/l4bitcost/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadCodecConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *CodecConfig) Validate() error {
	if c.Channels != nil && *c.Channels < 1 {
		return fmt.Errorf("channels must be positive, got %d", *c.Channels)
	}

	if c.KernelSize != nil && (*c.KernelSize < 1 || *c.KernelSize%2 == 0) {
		return fmt.Errorf("kernel_size must be odd and positive, got %d", *c.KernelSize)
	}

	if c.MinLevelPoints != nil && *c.MinLevelPoints < 1 {
		return fmt.Errorf("min_level_points must be at least 1, got %d", *c.MinLevelPoints)
	}

	if c.MaxSymbolBits != nil && *c.MaxSymbolBits <= 0 {
		return fmt.Errorf("max_symbol_bits must be positive, got %f", *c.MaxSymbolBits)
	}

	if c.QuantizationStep != nil && *c.QuantizationStep <= 0 {
		return fmt.Errorf("quantization_step must be positive, got %f", *c.QuantizationStep)
	}

	if c.PointStride != nil && *c.PointStride < 3 {
		return fmt.Errorf("point_stride must be at least 3 (x, y, z), got %d", *c.PointStride)
	}

	if c.ReattachThreshold != nil && *c.ReattachThreshold < 0 {
		return fmt.Errorf("reattach_threshold must be non-negative, got %f", *c.ReattachThreshold)
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	if c.FileTimeout != nil && *c.FileTimeout != "" {
		if _, err := time.ParseDuration(*c.FileTimeout); err != nil {
			return fmt.Errorf("invalid file_timeout '%s': %w", *c.FileTimeout, err)
		}
	}

	return nil
}

// GetChannels returns the channels value or the default.
func (c *CodecConfig) GetChannels() int {
	if c.Channels == nil {
		return 32
	}
	return *c.Channels
}

// GetKernelSize returns the kernel_size value or the default.
func (c *CodecConfig) GetKernelSize() int {
	if c.KernelSize == nil {
		return 3
	}
	return *c.KernelSize
}

// GetParamSeed returns the param_seed value or the default.
func (c *CodecConfig) GetParamSeed() uint64 {
	if c.ParamSeed == nil {
		return 1
	}
	return uint64(*c.ParamSeed)
}

// GetMinLevelPoints returns the min_level_points value or the default.
func (c *CodecConfig) GetMinLevelPoints() int {
	if c.MinLevelPoints == nil {
		return 64
	}
	return *c.MinLevelPoints
}

// GetMaxSymbolBits returns the max_symbol_bits value or the default.
func (c *CodecConfig) GetMaxSymbolBits() float64 {
	if c.MaxSymbolBits == nil {
		return 50
	}
	return *c.MaxSymbolBits
}

// GetVerifyExpansion returns the verify_expansion value or the default.
func (c *CodecConfig) GetVerifyExpansion() bool {
	if c.VerifyExpansion == nil {
		return true
	}
	return *c.VerifyExpansion
}

// GetQuantizationStep returns the quantization_step value or the default (1 mm).
func (c *CodecConfig) GetQuantizationStep() float64 {
	if c.QuantizationStep == nil {
		return 0.001
	}
	return *c.QuantizationStep
}

// GetQuantizationOffset returns the quantization_offset value or the default.
func (c *CodecConfig) GetQuantizationOffset() int {
	if c.QuantizationOffset == nil {
		return 131072 // 2^17
	}
	return *c.QuantizationOffset
}

// GetPointStride returns the point_stride value or the default (x, y, z, intensity).
func (c *CodecConfig) GetPointStride() int {
	if c.PointStride == nil {
		return 4
	}
	return *c.PointStride
}

// GetReattachThreshold returns the reattach_threshold value or the default.
func (c *CodecConfig) GetReattachThreshold() float64 {
	if c.ReattachThreshold == nil {
		return 0.01
	}
	return *c.ReattachThreshold
}

// GetWorkers returns the workers value or the default.
func (c *CodecConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetFileTimeout parses and returns the FileTimeout. Zero means no limit.
func (c *CodecConfig) GetFileTimeout() time.Duration {
	if c.FileTimeout == nil || *c.FileTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.FileTimeout)
	if err != nil {
		return 0
	}
	return d
}
