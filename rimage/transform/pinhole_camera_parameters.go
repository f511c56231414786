// Package transform holds the camera model that maps between image pixels and 3D points.
package transform

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/utils"
)

// CameraConfig describes how to derive intrinsics for an image. Exactly one of FOV,
// FocalLength or Intrinsics must be set.
type CameraConfig struct {
	// FOV is the horizontal field of view in degrees.
	FOV *float64 `json:"fov,omitempty" jsonschema:"minimum=0,maximum=180"`
	// FocalLength is in pixels.
	FocalLength *float64 `json:"focal_length,omitempty" jsonschema:"minimum=0"`
	// Intrinsics are calibrated for a camera of Width x Height and get scaled to the image size.
	Intrinsics *PinholeCameraIntrinsics `json:"intrinsics,omitempty"`
}

// IsEmpty reports whether no camera description is set.
func (cfg CameraConfig) IsEmpty() bool {
	return cfg.FOV == nil && cfg.FocalLength == nil && cfg.Intrinsics == nil
}

// Validate checks that the camera is described exactly once with values in range.
func (cfg CameraConfig) Validate() error {
	set := 0
	for _, given := range []bool{cfg.FOV != nil, cfg.FocalLength != nil, cfg.Intrinsics != nil} {
		if given {
			set++
		}
	}
	switch {
	case set > 1:
		return utils.NewConfigurationError("only one of fov, focal_length or intrinsics may be given")
	case set == 0:
		return utils.NewConfigurationError("one of fov or focal_length must be given, or calibrated intrinsics")
	case cfg.FOV != nil:
		if fov := *cfg.FOV; !utils.IsFinite(fov) || fov <= 0 || fov >= 180 {
			return utils.NewInvalidParameterError("fov must be in (0, 180) degrees, got %v", fov)
		}
	case cfg.FocalLength != nil:
		if f := *cfg.FocalLength; !utils.IsFinite(f) || f <= 0 {
			return utils.NewInvalidParameterError("focal_length must be positive, got %v", f)
		}
	default:
		return cfg.Intrinsics.CheckValid()
	}
	return nil
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewIntrinsics builds intrinsics for a width x height image from cfg. Unless calibrated
// intrinsics are given, the principal point is the image centre.
func NewIntrinsics(width, height int, cfg CameraConfig) (*PinholeCameraIntrinsics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case cfg.FOV != nil:
		return NewIntrinsicsFromFOV(width, height, *cfg.FOV)
	case cfg.FocalLength != nil:
		return NewIntrinsicsFromFocalLength(width, height, *cfg.FocalLength)
	default:
		return cfg.Intrinsics.Resize(width, height)
	}
}

// NewIntrinsicsFromFOV derives a square-pixel camera from its horizontal field of view in degrees:
// f = (W/2) / tan(FOV/2).
func NewIntrinsicsFromFOV(width, height int, fov float64) (*PinholeCameraIntrinsics, error) {
	if !utils.IsFinite(fov) || fov <= 0 || fov >= 180 {
		return nil, utils.NewInvalidParameterError("fov must be in (0, 180) degrees, got %v", fov)
	}
	f := (float64(width) / 2) / math.Tan(utils.DegToRad(fov)/2)
	return NewIntrinsicsFromFocalLength(width, height, f)
}

// NewIntrinsicsFromFocalLength builds a square-pixel camera with focal length f in pixels.
func NewIntrinsicsFromFocalLength(width, height int, f float64) (*PinholeCameraIntrinsics, error) {
	if !utils.IsFinite(f) || f <= 0 {
		return nil, utils.NewInvalidParameterError("focal_length must be positive, got %v", f)
	}
	params := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     f,
		Fy:     f,
		Ppx:    float64(width) / 2,
		Ppy:    float64(height) / 2,
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return utils.NewConfigurationError("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return utils.NewInvalidParameterError("invalid size (%d, %d)", params.Width, params.Height)
	}
	if !(params.Fx > 0) || math.IsInf(params.Fx, 0) {
		return utils.NewInvalidParameterError("invalid focal length Fx = %v", params.Fx)
	}
	if !(params.Fy > 0) || math.IsInf(params.Fy, 0) {
		return utils.NewInvalidParameterError("invalid focal length Fy = %v", params.Fy)
	}
	if params.Ppx < 0 {
		return utils.NewInvalidParameterError("invalid principal X point Ppx = %v", params.Ppx)
	}
	if params.Ppy < 0 {
		return utils.NewInvalidParameterError("invalid principal Y point Ppy = %v", params.Ppy)
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (_ *PinholeCameraIntrinsics, err error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer func() {
		err = multierr.Combine(err, jsonFile.Close())
	}()
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// Resize returns the intrinsics of the same camera for an image resampled to width x height.
func (params *PinholeCameraIntrinsics) Resize(width, height int) (*PinholeCameraIntrinsics, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, utils.NewInvalidParameterError("invalid size (%d, %d)", width, height)
	}
	sx := float64(width) / float64(params.Width)
	sy := float64(height) / float64(params.Height)
	return &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     params.Fx * sx,
		Fy:     params.Fy * sy,
		Ppx:    params.Ppx * sx,
		Ppy:    params.Ppy * sy,
	}, nil
}

// PixelToPoint transforms a pixel with depth to a 3D point.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// CameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) CameraMatrix() *mat.Dense {
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// PixelArea returns the area in square metres seen by a single pixel facing the camera at
// depth d.
func (params *PinholeCameraIntrinsics) PixelArea(d float64) float64 {
	return d * d / (params.Fx * params.Fy)
}

// DepthMapToPointCloud back-projects every pixel of dm, keeping the pixel grid layout so that
// point i comes from pixel (i%W, i/W). No points are dropped.
func (params *PinholeCameraIntrinsics) DepthMapToPointCloud(dm *rimage.DepthMap) (*pointcloud.Organized, error) {
	if dm == nil {
		return nil, errors.New("no depth map. Cannot project to Pointcloud")
	}
	if params.Width != dm.Width() || params.Height != dm.Height() {
		return nil, utils.NewInvalidParameterError("depth map and intrinsics dimensions don't match Depth(%d,%d) != Intrinsics(%d,%d)",
			dm.Width(), dm.Height(), params.Width, params.Height)
	}
	points := make([]r3.Vector, 0, dm.Width()*dm.Height())
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			px, py, pz := params.PixelToPoint(float64(x), float64(y), dm.GetDepth(x, y))
			points = append(points, r3.Vector{X: px, Y: py, Z: pz})
		}
	}
	return pointcloud.NewOrganized(dm.Width(), dm.Height(), points)
}
