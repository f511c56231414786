package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/foodvolume/config"
	"go.viam.com/foodvolume/logging"
	"go.viam.com/foodvolume/rimage/transform"
	"go.viam.com/foodvolume/volume"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\033[1;33mWarning:\033[0m "+format+"\n", a...)
}

// newLogger builds the logger selected by the global flags.
func newLogger(c *cli.Context) logging.Logger {
	var logger logging.Logger
	if c.Bool(debugFlag) {
		logger = logging.NewDebugLogger("foodvolume")
	} else {
		logger = logging.NewLogger("foodvolume")
	}
	if fn := c.Path(logFileFlag); fn != "" {
		logger.AddAppender(logging.NewFileAppender(logging.FileAppenderConfig{
			Filename:   fn,
			MaxSizeMB:  10,
			MaxBackups: 3,
		}))
	}
	return logger
}

// loadConfig reads the --config file if given, otherwise starts from the defaults. Camera flags
// replace the configured camera. The result is not validated.
func loadConfig(c *cli.Context) (volume.Config, error) {
	cfg := volume.DefaultConfig()
	if fn := c.Path(configFlag); fn != "" {
		read, err := config.Read(fn)
		if err != nil {
			return volume.Config{}, err
		}
		cfg = *read
	}
	if c.IsSet(fovFlag) || c.IsSet(focalLengthFlag) || c.IsSet(intrinsicsFlag) {
		var cam transform.CameraConfig
		if c.IsSet(fovFlag) {
			fov := c.Float64(fovFlag)
			cam.FOV = &fov
		}
		if c.IsSet(focalLengthFlag) {
			f := c.Float64(focalLengthFlag)
			cam.FocalLength = &f
		}
		if fn := c.Path(intrinsicsFlag); fn != "" {
			intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(fn)
			if err != nil {
				return volume.Config{}, err
			}
			cam.Intrinsics = intrinsics
		}
		cfg = cfg.WithCamera(cam)
	}
	return cfg, nil
}

// requireArgs checks the number of positional arguments.
func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() != n {
		return errors.Errorf("expected %d argument(s), got %d. Usage: %s %s", n, c.Args().Len(), c.Command.HelpName, c.Command.ArgsUsage)
	}
	return nil
}
