package cli

import (
	"encoding/json"

	"github.com/urfave/cli/v2"

	"go.viam.com/foodvolume/config"
)

// ConfigSchemaAction is the corresponding Action for 'config schema'.
func ConfigSchemaAction(c *cli.Context) error {
	out, err := config.SchemaJSON()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}

// ConfigCheckAction is the corresponding Action for 'config check'.
func ConfigCheckAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	cfg, err := config.Read(c.Args().First())
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}
