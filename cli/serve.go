package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/foodvolume/logging"
	"go.viam.com/foodvolume/ml"
	"go.viam.com/foodvolume/volume"
	"go.viam.com/foodvolume/web"
)

// ServeAction is the corresponding Action for 'serve'.
func ServeAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	defer func() {
		err = multierr.Combine(err, logger.Sync())
	}()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Camera().IsEmpty() {
		fov := web.DefaultFOV
		cfg.FOV = &fov
		logger.Infow("no camera configured, assuming default field of view", "fov", fov)
	}
	depth, seg, err := modelsFromFlags(c, cfg, logger)
	if err != nil {
		return err
	}
	est, err := volume.NewEstimator(depth, seg, cfg, logger.Sublogger("estimator"))
	if err != nil {
		return err
	}
	srv := web.NewServer(est, web.Options{
		Port:          c.Int(portFlag),
		MaxConcurrent: c.Int(maxConcurrentFlag),
		Pprof:         c.Bool(pprofFlag),
	}, logger.Sublogger("web"))
	return srv.Run(c.Context)
}

// modelsFromFlags connects the depth and segmentation networks. Without model URLs both results
// are nil and only depth plus mask requests can be served.
func modelsFromFlags(c *cli.Context, cfg volume.Config, logger logging.Logger) (volume.DepthEstimator, volume.Segmenter, error) {
	depthURL, maskURL := c.String(depthModelURLFlag), c.String(maskModelURLFlag)
	if depthURL == "" && maskURL == "" {
		logger.Infow("no model servers configured, requests must carry depth and mask")
		return nil, nil, nil
	}
	if depthURL == "" || maskURL == "" {
		return nil, nil, errors.Errorf("--%s and --%s must be given together", depthModelURLFlag, maskModelURLFlag)
	}
	timeout := c.Duration(modelTimeoutFlag)
	depthModel, err := ml.NewRemoteModel(depthURL, timeout)
	if err != nil {
		return nil, nil, err
	}
	maskModel, err := ml.NewRemoteModel(maskURL, timeout)
	if err != nil {
		return nil, nil, err
	}
	width, height := c.Int(modelWidthFlag), c.Int(modelHeightFlag)
	logger.Infow("using model servers", "depth", depthURL, "mask", maskURL, "input", []int{width, height})
	return &ml.DepthModel{
			Model:       depthModel,
			InputWidth:  width,
			InputHeight: height,
			Disparity:   c.Bool(disparityFlag),
			MinDepth:    cfg.MinDepth,
			MaxDepth:    cfg.MaxDepth,
		}, &ml.MaskModel{
			Model:       maskModel,
			InputWidth:  width,
			InputHeight: height,
			Threshold:   c.Float64(maskThresholdFlag),
		}, nil
}
