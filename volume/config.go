package volume

import (
	"go.uber.org/multierr"

	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/rimage/transform"
	"go.viam.com/foodvolume/utils"
	"go.viam.com/foodvolume/vision/segmentation"
)

// RescaleMode selects how raw network depth is brought to metric scale.
type RescaleMode string

const (
	// RescaleFactor multiplies raw depth by the configured depth_rescaling factor.
	RescaleFactor RescaleMode = "factor"
	// RescaleMedian picks the factor per image so that the median depth equals median_depth.
	RescaleMedian RescaleMode = "median"
)

// FootprintModel selects how the area under each food pixel is computed.
type FootprintModel string

const (
	// FootprintPlaneProjected projects neighbouring points onto the reference plane and measures
	// the parallelogram they span.
	FootprintPlaneProjected FootprintModel = "plane_projected"
	// FootprintPinhole uses d²/(fx·fy), the area of a pixel facing the camera at depth d.
	FootprintPinhole FootprintModel = "pinhole"
)

// Defaults used when a field is left at its zero value.
const (
	DefaultDepthRescaling   = 1.0
	DefaultMedianDepth      = 0.35
	DefaultMinDepth         = 0.01
	DefaultMaxDepth         = 10.0
	DefaultRelaxationRadius = 8
	DefaultWorkers          = 4
)

// Config holds every tunable of the estimation pipeline.
type Config struct {
	// FOV is the horizontal field of view in degrees. Exactly one of fov, focal_length and
	// intrinsics is required.
	FOV *float64 `json:"fov,omitempty" jsonschema:"minimum=0,maximum=180"`
	// FocalLength is in pixels.
	FocalLength *float64 `json:"focal_length,omitempty" jsonschema:"minimum=0"`
	// Intrinsics are calibrated camera parameters, used instead of fov or focal_length.
	Intrinsics *transform.PinholeCameraIntrinsics `json:"intrinsics,omitempty"`

	// DepthRescaling is the calibration factor R of the depth model.
	DepthRescaling float64     `json:"depth_rescaling,omitempty"`
	RescaleMode    RescaleMode `json:"rescale_mode,omitempty" jsonschema:"enum=factor,enum=median"`
	// MedianDepth is the expected median scene depth in metres for the median rescale mode.
	MedianDepth float64 `json:"median_depth,omitempty"`
	MinDepth    float64 `json:"min_depth,omitempty"`
	MaxDepth    float64 `json:"max_depth,omitempty"`

	// RelaxationParam is the width in pixels of the ring around the food used to fit the plane.
	RelaxationParam int `json:"relaxation_param,omitempty"`
	// ErosionRadius in pixels trims the food boundary before integrating. 0 disables it.
	ErosionRadius int `json:"erosion_radius,omitempty"`

	PlaneFit segmentation.PlaneFitConfig `json:"plane_fit"`

	FootprintModel FootprintModel `json:"footprint_model,omitempty" jsonschema:"enum=plane_projected,enum=pinhole"`
	// MaxHeight in metres drops heights above it as depth spikes. 0 disables it.
	MaxHeight float64 `json:"max_height,omitempty"`

	// Workers bounds the concurrency of batch estimation.
	Workers int `json:"workers,omitempty"`
}

// DefaultConfig returns a configuration with every default applied and no camera set.
func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. The camera is never defaulted.
func (cfg *Config) ApplyDefaults() {
	if cfg.DepthRescaling == 0 {
		cfg.DepthRescaling = DefaultDepthRescaling
	}
	if cfg.RescaleMode == "" {
		cfg.RescaleMode = RescaleFactor
	}
	if cfg.MedianDepth == 0 {
		cfg.MedianDepth = DefaultMedianDepth
	}
	if cfg.MinDepth == 0 {
		cfg.MinDepth = DefaultMinDepth
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.RelaxationParam == 0 {
		cfg.RelaxationParam = DefaultRelaxationRadius
	}
	defaults := segmentation.DefaultPlaneFitConfig()
	if cfg.PlaneFit.MaxIterations == 0 {
		cfg.PlaneFit.MaxIterations = defaults.MaxIterations
	}
	if cfg.PlaneFit.MinResidualThreshold == 0 {
		cfg.PlaneFit.MinResidualThreshold = defaults.MinResidualThreshold
	}
	if cfg.PlaneFit.ResidualScale == 0 {
		cfg.PlaneFit.ResidualScale = defaults.ResidualScale
	}
	if cfg.PlaneFit.RansacIterations == 0 {
		cfg.PlaneFit.RansacIterations = defaults.RansacIterations
	}
	if cfg.PlaneFit.RansacThreshold == 0 {
		cfg.PlaneFit.RansacThreshold = defaults.RansacThreshold
	}
	if cfg.FootprintModel == "" {
		cfg.FootprintModel = FootprintPlaneProjected
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
}

// Camera returns the camera part of the configuration.
func (cfg Config) Camera() transform.CameraConfig {
	return transform.CameraConfig{FOV: cfg.FOV, FocalLength: cfg.FocalLength, Intrinsics: cfg.Intrinsics}
}

// WithCamera returns a copy of cfg describing the camera by cam instead.
func (cfg Config) WithCamera(cam transform.CameraConfig) Config {
	cfg.FOV = cam.FOV
	cfg.FocalLength = cam.FocalLength
	cfg.Intrinsics = cam.Intrinsics
	return cfg
}

// Regions returns the region extraction part of the configuration.
func (cfg Config) Regions() segmentation.RegionConfig {
	return segmentation.RegionConfig{RelaxationRadius: cfg.RelaxationParam, ErosionRadius: cfg.ErosionRadius}
}

// Validate returns every problem with the configuration at once.
func (cfg Config) Validate() error {
	var err error
	err = multierr.Append(err, cfg.Camera().Validate())
	if !utils.IsFinite(cfg.DepthRescaling) || cfg.DepthRescaling <= 0 {
		err = multierr.Append(err, utils.NewInvalidParameterError("depth_rescaling must be positive, got %v", cfg.DepthRescaling))
	}
	switch cfg.RescaleMode {
	case RescaleFactor:
	case RescaleMedian:
		if !utils.IsFinite(cfg.MedianDepth) || cfg.MedianDepth <= 0 {
			err = multierr.Append(err, utils.NewInvalidParameterError("median_depth must be positive, got %v", cfg.MedianDepth))
		}
	default:
		err = multierr.Append(err, utils.NewInvalidParameterError("unknown rescale_mode %q", cfg.RescaleMode))
	}
	err = multierr.Append(err, rimage.CheckDepthBounds(cfg.MinDepth, cfg.MaxDepth))
	err = multierr.Append(err, cfg.Regions().Validate())
	err = multierr.Append(err, cfg.PlaneFit.Validate())
	switch cfg.FootprintModel {
	case FootprintPlaneProjected, FootprintPinhole:
	default:
		err = multierr.Append(err, utils.NewInvalidParameterError("unknown footprint_model %q", cfg.FootprintModel))
	}
	if !utils.IsFinite(cfg.MaxHeight) || cfg.MaxHeight < 0 {
		err = multierr.Append(err, utils.NewInvalidParameterError("max_height cannot be negative, got %v", cfg.MaxHeight))
	}
	if cfg.Workers < 1 {
		err = multierr.Append(err, utils.NewInvalidParameterError("workers must be at least 1, got %d", cfg.Workers))
	}
	return err
}
