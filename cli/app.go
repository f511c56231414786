// Package cli contains the foodvolume command line.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/foodvolume/ml"
	"go.viam.com/foodvolume/web"
)

const (
	// Global flags.
	configFlag  = "config"
	debugFlag   = "debug"
	logFileFlag = "log-file"

	// Camera flags.
	fovFlag         = "fov"
	focalLengthFlag = "focal-length"
	intrinsicsFlag  = "intrinsics"

	// Estimate flags.
	depthFlag     = "depth"
	maskFlag      = "mask"
	pcdFlag       = "pcd"
	pcdBinaryFlag = "pcd-binary"
	heightmapFlag = "heightmap"
	jsonFlag      = "json"

	// Serve flags.
	portFlag          = "port"
	maxConcurrentFlag = "max-concurrent"
	pprofFlag         = "pprof"

	// Model flags.
	depthModelURLFlag = "depth-model-url"
	maskModelURLFlag  = "mask-model-url"
	modelWidthFlag    = "model-width"
	modelHeightFlag   = "model-height"
	disparityFlag     = "disparity"
	maskThresholdFlag = "mask-threshold"
	modelTimeoutFlag  = "model-timeout"
)

var cameraFlags = []cli.Flag{
	&cli.Float64Flag{
		Name:  fovFlag,
		Usage: "horizontal field of view of the camera in degrees",
	},
	&cli.Float64Flag{
		Name:  focalLengthFlag,
		Usage: "focal length of the camera in pixels",
	},
	&cli.PathFlag{
		Name:  intrinsicsFlag,
		Usage: "calibrated pinhole intrinsics JSON `FILE` (width_px, height_px, fx, fy, ppx, ppy)",
	},
}

var modelFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  depthModelURLFlag,
		Usage: "TensorFlow Serving REST predict `URL` of the depth network",
	},
	&cli.StringFlag{
		Name:  maskModelURLFlag,
		Usage: "TensorFlow Serving REST predict `URL` of the food segmentation network",
	},
	&cli.IntFlag{
		Name:  modelWidthFlag,
		Value: 224,
		Usage: "input width the networks were trained at",
	},
	&cli.IntFlag{
		Name:  modelHeightFlag,
		Value: 128,
		Usage: "input height the networks were trained at",
	},
	&cli.BoolFlag{
		Name:  disparityFlag,
		Value: true,
		Usage: "the depth network outputs normalised disparity rather than depth",
	},
	&cli.Float64Flag{
		Name:  maskThresholdFlag,
		Value: ml.DefaultMaskThreshold,
		Usage: "food probability above which a pixel is food",
	},
	&cli.DurationFlag{
		Name:  modelTimeoutFlag,
		Value: ml.DefaultRemoteTimeout,
		Usage: "timeout of a single model server request",
	},
}

var app = &cli.App{
	Name:            "foodvolume",
	Usage:           "estimate the volume of food from depth and segmentation",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  logFileFlag,
			Usage: "also write logs to a size-rotated `FILE`",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "estimate",
			Usage:     "estimate the food volume from a depth map and a food mask",
			UsageText: "foodvolume estimate --depth <depth.png> --mask <mask.png> [--fov <deg> | --focal-length <px> | --intrinsics <file>] [other options]",
			Flags: append([]cli.Flag{
				&cli.PathFlag{
					Name:     depthFlag,
					Required: true,
					Usage:    "16-bit PNG depth map in millimetres",
				},
				&cli.PathFlag{
					Name:     maskFlag,
					Required: true,
					Usage:    "PNG food mask, non-zero pixels are food",
				},
				&cli.PathFlag{
					Name:  pcdFlag,
					Usage: "write the labelled point cloud to `FILE`",
				},
				&cli.BoolFlag{
					Name:  pcdBinaryFlag,
					Usage: "write the point cloud in binary pcd instead of ascii",
				},
				&cli.PathFlag{
					Name:  heightmapFlag,
					Usage: "write a false colour PNG of the food height to `FILE`",
				},
				&cli.BoolFlag{
					Name:  jsonFlag,
					Usage: "print the result as JSON",
				},
			}, cameraFlags...),
			Action: EstimateAction,
		},
		{
			Name:  "serve",
			Usage: "serve the estimator over HTTP",
			Flags: append([]cli.Flag{
				&cli.IntFlag{
					Name:  portFlag,
					Value: 8080,
					Usage: "port to listen on",
				},
				&cli.IntFlag{
					Name:  maxConcurrentFlag,
					Value: 1,
					Usage: "number of estimations that may run at once",
				},
				&cli.BoolFlag{
					Name:  pprofFlag,
					Usage: "expose /debug/pprof/",
				},
			}, append(cameraFlags, modelFlags...)...),
			Description: fmt.Sprintf("Requests that describe no camera use the configured one, or a "+
				"field of view of %v degrees when none is configured. Requests carrying a plain "+
				"image need both --%s and --%s.", web.DefaultFOV, depthModelURLFlag, maskModelURLFlag),
			Action: ServeAction,
		},
		{
			Name:            "config",
			Usage:           "work with configuration files",
			HideHelpCommand: true,
			Subcommands: []*cli.Command{
				{
					Name:   "schema",
					Usage:  "print the JSON schema of the configuration file",
					Action: ConfigSchemaAction,
				},
				{
					Name:      "check",
					Usage:     "validate a configuration file and print it with defaults filled in",
					ArgsUsage: "<file>",
					Action:    ConfigCheckAction,
				},
			},
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
