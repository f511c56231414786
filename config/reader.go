// Package config reads estimator configuration files.
package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/foodvolume/utils"
	"go.viam.com/foodvolume/volume"
)

// Read reads a config from the given file. ${VAR} references are replaced with environment
// variables before parsing.
func Read(filePath string) (*volume.Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	cfg, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", filePath)
	}
	return cfg, nil
}

// FromReader parses a JSON config, fills in defaults and validates the result.
func FromReader(r io.Reader) (*volume.Config, error) {
	var attributes map[string]interface{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&attributes); err != nil {
		return nil, utils.NewConfigurationError("malformed config json: %v", err)
	}
	return FromAttributes(attributes)
}

// FromAttributes decodes an already parsed attribute map. Unknown keys are an error.
func FromAttributes(attributes map[string]interface{}) (*volume.Config, error) {
	var conf volume.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, utils.NewConfigurationError("%v", err)
	}
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
