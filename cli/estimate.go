package cli

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/volume"
)

// estimateResult is printed by estimate --json.
type estimateResult struct {
	Milliliters  float64   `json:"milliliters"`
	Liters       float64   `json:"liters"`
	FoodPixels   int       `json:"food_pixels"`
	Components   int       `json:"components"`
	PlanePixels  int       `json:"plane_pixels"`
	PlaneInliers int       `json:"plane_inliers"`
	PlaneRMS     float64   `json:"plane_rms_m"`
	Plane        []float64 `json:"plane_equation"`
	Rejected     int       `json:"rejected_pixels"`
	// CameraMatrix is the row-major 3x3 matrix of the intrinsics used.
	CameraMatrix [][]float64 `json:"camera_matrix"`
}

// EstimateAction is the corresponding Action for 'estimate'.
func EstimateAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	defer func() {
		err = multierr.Combine(err, logger.Sync())
	}()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	est, err := volume.NewEstimator(nil, nil, cfg, logger)
	if err != nil {
		return err
	}

	depth, err := rimage.ReadDepthMap(c.Path(depthFlag))
	if err != nil {
		return err
	}
	mask, err := rimage.ReadMask(c.Path(maskFlag))
	if err != nil {
		return err
	}
	res, err := est.EstimateFromDepth(c.Context, depth, mask)
	if err != nil {
		return err
	}
	if res.Regions.Components > 1 {
		warningf(c.App.ErrWriter, "mask has %d separate food regions, only the largest was measured", res.Regions.Components)
	}

	if fn := c.Path(pcdFlag); fn != "" {
		pcdType := pointcloud.PCDAscii
		if c.Bool(pcdBinaryFlag) {
			pcdType = pointcloud.PCDBinary
		}
		if err := pointcloud.WriteToPCDFile(res.Cloud, fn, pcdType); err != nil {
			return errors.Wrap(err, "cannot write point cloud")
		}
		logger.Infow("wrote point cloud", "file", fn)
	}
	if fn := c.Path(heightmapFlag); fn != "" {
		img, err := rimage.HeightMapImage(res.Cloud.Width(), res.Cloud.Height(), res.HeightGrid(), cfg.MaxHeight)
		if err != nil {
			return err
		}
		if err := rimage.WriteImageToFile(fn, img); err != nil {
			return errors.Wrap(err, "cannot write height map")
		}
		logger.Infow("wrote height map", "file", fn)
	}

	if c.Bool(jsonFlag) {
		k := res.Intrinsics.CameraMatrix()
		rows, _ := k.Dims()
		cameraMatrix := make([][]float64, rows)
		for i := range cameraMatrix {
			cameraMatrix[i] = mat.Row(nil, i, k)
		}
		out, err := json.MarshalIndent(estimateResult{
			Milliliters:  res.Milliliters(),
			Liters:       res.Liters(),
			FoodPixels:   res.FoodPixels(),
			Components:   res.Regions.Components,
			PlanePixels:  res.PlanePixels(),
			PlaneInliers: res.PlaneInliers(),
			PlaneRMS:     res.PlaneFit.RMS,
			Plane:        res.Plane.Equation(),
			Rejected:     res.Rejected,
			CameraMatrix: cameraMatrix,
		}, "", "  ")
		if err != nil {
			return err
		}
		printf(c.App.Writer, "%s", out)
		return nil
	}
	printf(c.App.Writer, "volume: %.1f mL (%.4f L)", res.Milliliters(), res.Liters())
	printf(c.App.Writer, "food pixels: %d, plane inliers: %d/%d (rms %.2g m)",
		res.FoodPixels(), res.PlaneInliers(), res.PlanePixels(), res.PlaneFit.RMS)
	return nil
}
