package segmentation

import (
	"math"
	"math/rand"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/utils"
)

// madToSigma turns a median absolute deviation into a normal standard deviation.
const madToSigma = 1.4826

// collinearTolerance is the smallest ratio between the middle and the largest spread of a point
// set for it to count as spanning a plane.
const collinearTolerance = 1e-10

// PlaneFitConfig parameterises the robust plane fit.
type PlaneFitConfig struct {
	// MaxIterations bounds the trim-and-refit loop.
	MaxIterations int `json:"max_iterations"`
	// MinResidualThreshold is the smallest distance in metres from the median residual that is
	// always kept.
	MinResidualThreshold float64 `json:"min_residual_threshold"`
	// ResidualScale is how many robust standard deviations from the median residual are kept.
	ResidualScale float64 `json:"residual_scale"`
	// RansacIterations is the number of deterministic RANSAC samples used to seed the inlier set.
	// 0 seeds with every point.
	RansacIterations int `json:"ransac_iterations"`
	// RansacThreshold is the inlier distance in metres for RANSAC sampling.
	RansacThreshold float64 `json:"ransac_threshold"`
}

// DefaultPlaneFitConfig returns the parameters used when none are configured.
func DefaultPlaneFitConfig() PlaneFitConfig {
	return PlaneFitConfig{
		MaxIterations:        50,
		MinResidualThreshold: 0.002,
		ResidualScale:        2.5,
		RansacIterations:     200,
		RansacThreshold:      0.005,
	}
}

// Validate returns every problem with the parameters.
func (cfg PlaneFitConfig) Validate() error {
	var err error
	if cfg.MaxIterations < 1 {
		err = multierr.Append(err, utils.NewInvalidParameterError("plane fit max_iterations must be at least 1, got %d", cfg.MaxIterations))
	}
	if !(cfg.MinResidualThreshold > 0) {
		err = multierr.Append(err, utils.NewInvalidParameterError(
			"plane fit min_residual_threshold must be positive, got %v", cfg.MinResidualThreshold))
	}
	if !(cfg.ResidualScale > 0) {
		err = multierr.Append(err, utils.NewInvalidParameterError("plane fit residual_scale must be positive, got %v", cfg.ResidualScale))
	}
	if cfg.RansacIterations < 0 {
		err = multierr.Append(err, utils.NewInvalidParameterError(
			"plane fit ransac_iterations cannot be negative, got %d", cfg.RansacIterations))
	}
	if cfg.RansacIterations > 0 && !(cfg.RansacThreshold > 0) {
		err = multierr.Append(err, utils.NewInvalidParameterError(
			"plane fit ransac_threshold must be positive, got %v", cfg.RansacThreshold))
	}
	return err
}

// PlaneFit is the result of FitPlane.
type PlaneFit struct {
	// Plane is oriented so that the camera origin is on its positive side.
	Plane pointcloud.Plane
	// Inliers are the indices of the points the final plane was fit to, ascending.
	Inliers []int
	// Iterations is the number of refits performed.
	Iterations int
	// RMS is the root mean square distance of the inliers to the plane.
	RMS float64
}

// FitPlane fits the supporting plane to points with a bounded trimmed least squares.
//
// Starting from a RANSAC seed (or all points), each iteration fits a total least squares plane
// to the current inliers, then keeps the points whose residual lies within
// max(MinResidualThreshold, ResidualScale*1.4826*MAD) of the median residual, both taken over
// every point. The loop ends when the inlier set no longer changes, or when it returns to an
// earlier set, in which case the fit with the lowest RMS among the repeating sets is kept.
// Identical input gives identical output.
func FitPlane(points []r3.Vector, cfg PlaneFitConfig) (*PlaneFit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(points) < 3 {
		return nil, utils.NewInsufficientDataError("need at least 3 points to fit a plane, got %d", len(points))
	}
	all := make([]int, len(points))
	for i := range all {
		all[i] = i
	}
	// rejects collinear and coincident sets up front
	if _, err := fitTotalLeastSquares(points, all); err != nil {
		return nil, err
	}

	inliers := all
	if cfg.RansacIterations > 0 {
		if seed := ransacInliers(points, cfg.RansacIterations, cfg.RansacThreshold); len(seed) >= 3 {
			inliers = seed
		}
	}

	residuals := make([]float64, len(points))
	var history []*PlaneFit
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if len(inliers) < 3 {
			return nil, utils.NewInsufficientDataError("only %d plane inliers left after %d iterations", len(inliers), iter-1)
		}
		plane, err := fitTotalLeastSquares(points, inliers)
		if err != nil {
			return nil, err
		}
		for i, p := range points {
			residuals[i] = plane.Distance(p)
		}
		var sumSq float64
		for _, i := range inliers {
			sumSq += residuals[i] * residuals[i]
		}
		current := &PlaneFit{
			Plane:      plane.OrientTowards(r3.Vector{}),
			Inliers:    inliers,
			Iterations: iter,
			RMS:        math.Sqrt(sumSq / float64(len(inliers))),
		}
		history = append(history, current)

		center, err := stats.Median(residuals)
		if err != nil {
			return nil, utils.NewNumericalInstabilityError("median of plane residuals: %v", err)
		}
		mad, err := stats.MedianAbsoluteDeviation(residuals)
		if err != nil {
			return nil, utils.NewNumericalInstabilityError("spread of plane residuals: %v", err)
		}
		threshold := math.Max(cfg.MinResidualThreshold, cfg.ResidualScale*madToSigma*mad)

		next := make([]int, 0, len(inliers))
		for i, r := range residuals {
			if math.Abs(r-center) <= threshold {
				next = append(next, i)
			}
		}
		if slices.Equal(next, inliers) {
			return current, nil
		}
		// points near the threshold can make the inlier set oscillate between a few states
		if start := cycleStart(history, next); start >= 0 {
			best := history[start]
			for _, fit := range history[start+1:] {
				if fit.RMS < best.RMS {
					best = fit
				}
			}
			best.Iterations = iter
			return best, nil
		}
		inliers = next
	}
	return nil, utils.NewNumericalInstabilityError("plane fit did not converge within %d iterations", cfg.MaxIterations)
}

// cycleStart returns the index of the earlier fit whose inlier set equals next, or -1.
func cycleStart(history []*PlaneFit, next []int) int {
	for i, fit := range history {
		if slices.Equal(fit.Inliers, next) {
			return i
		}
	}
	return -1
}

// fitTotalLeastSquares fits a plane through the centroid of the selected points whose normal is
// the direction of least spread.
func fitTotalLeastSquares(points []r3.Vector, indices []int) (pointcloud.Plane, error) {
	var centroid r3.Vector
	for _, i := range indices {
		centroid = centroid.Add(points[i])
	}
	centroid = centroid.Mul(1 / float64(len(indices)))

	var cxx, cxy, cxz, cyy, cyz, czz float64
	for _, i := range indices {
		d := points[i].Sub(centroid)
		cxx += d.X * d.X
		cxy += d.X * d.Y
		cxz += d.X * d.Z
		cyy += d.Y * d.Y
		cyz += d.Y * d.Z
		czz += d.Z * d.Z
	}
	n := float64(len(indices))
	cov := mat.NewSymDense(3, []float64{
		cxx / n, cxy / n, cxz / n,
		cxy / n, cyy / n, cyz / n,
		cxz / n, cyz / n, czz / n,
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return pointcloud.Plane{}, utils.NewNumericalInstabilityError("eigen decomposition of the point covariance failed")
	}
	// ascending order
	values := eig.Values(nil)
	for _, v := range values {
		if !utils.IsFinite(v) {
			return pointcloud.Plane{}, utils.NewNumericalInstabilityError("point covariance has non-finite eigenvalue %v", v)
		}
	}
	if values[2] <= 0 || values[1] <= collinearTolerance*values[2] {
		return pointcloud.Plane{}, utils.NewInsufficientDataError("%d points are collinear, cannot fit a plane", len(indices))
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	normal := r3.Vector{X: vectors.At(0, 0), Y: vectors.At(1, 0), Z: vectors.At(2, 0)}
	if normal.Norm() == 0 {
		return pointcloud.Plane{}, utils.NewNumericalInstabilityError("degenerate plane normal")
	}
	return pointcloud.NewPlane(normal, centroid), nil
}

// ransacInliers returns the largest set of points within threshold of a plane through three
// sampled points. The sampling seed is fixed.
func ransacInliers(points []r3.Vector, iterations int, threshold float64) []int {
	r := rand.New(rand.NewSource(1)) //nolint:gosec
	nPoints := len(points)

	var bestPlane pointcloud.Plane
	bestInliers := 0
	for i := 0; i < iterations; i++ {
		n1, n2, n3 := r.Intn(nPoints), r.Intn(nPoints), r.Intn(nPoints)
		if n1 == n2 || n1 == n3 || n2 == n3 {
			continue
		}
		p1, p2, p3 := points[n1], points[n2], points[n3]
		// get 2 vectors that are going to define the plane
		cross := p2.Sub(p1).Cross(p3.Sub(p1))
		if cross.Norm() == 0 {
			continue
		}
		plane := pointcloud.NewPlane(cross, p1)

		currentInliers := 0
		for _, pt := range points {
			if math.Abs(plane.Distance(pt)) < threshold {
				currentInliers++
			}
		}
		if currentInliers > bestInliers {
			bestPlane = plane
			bestInliers = currentInliers
		}
	}
	if bestInliers == 0 {
		return nil
	}

	inliers := make([]int, 0, bestInliers)
	for i, pt := range points {
		if math.Abs(bestPlane.Distance(pt)) < threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}
