package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"go.viam.com/foodvolume/volume"
)

// Schema returns the JSON schema of the config file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&volume.Config{})
}

// SchemaJSON returns the indented JSON schema of the config file.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
