package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/foodvolume/utils"
	"go.viam.com/foodvolume/volume"
)

func TestFromReader(t *testing.T) {
	conf, err := FromReader(strings.NewReader(`{"fov": 70}`))
	test.That(t, err, test.ShouldBeNil)
	want := volume.DefaultConfig()
	fov := 70.0
	want.FOV = &fov
	test.That(t, conf, test.ShouldResemble, &want)

	conf, err = FromReader(strings.NewReader(`{
		"focal_length": 512.5,
		"depth_rescaling": 0.8,
		"rescale_mode": "median",
		"median_depth": 0.4,
		"relaxation_param": 12,
		"erosion_radius": 1,
		"plane_fit": {"max_iterations": 10, "ransac_iterations": 50},
		"footprint_model": "pinhole",
		"max_height": 0.25
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.FOV, test.ShouldBeNil)
	test.That(t, *conf.FocalLength, test.ShouldEqual, 512.5)
	test.That(t, conf.DepthRescaling, test.ShouldEqual, 0.8)
	test.That(t, conf.RescaleMode, test.ShouldEqual, volume.RescaleMedian)
	test.That(t, conf.MedianDepth, test.ShouldEqual, 0.4)
	test.That(t, conf.RelaxationParam, test.ShouldEqual, 12)
	test.That(t, conf.ErosionRadius, test.ShouldEqual, 1)
	test.That(t, conf.PlaneFit.MaxIterations, test.ShouldEqual, 10)
	test.That(t, conf.PlaneFit.RansacIterations, test.ShouldEqual, 50)
	// unset nested fields still get their defaults
	test.That(t, conf.PlaneFit.ResidualScale, test.ShouldEqual, 2.5)
	test.That(t, conf.FootprintModel, test.ShouldEqual, volume.FootprintPinhole)
	test.That(t, conf.MaxHeight, test.ShouldEqual, 0.25)
	test.That(t, conf.MinDepth, test.ShouldEqual, volume.DefaultMinDepth)
}

func TestFromReaderErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		json   string
		target error
		substr string
	}{
		{"empty", ``, utils.ErrConfiguration, "malformed"},
		{"not an object", `[1, 2]`, utils.ErrConfiguration, "malformed"},
		{"unknown key", `{"fov": 70, "fvo": 70}`, utils.ErrConfiguration, "fvo"},
		{"no camera", `{}`, utils.ErrConfiguration, "fov"},
		{"both cameras", `{"fov": 70, "focal_length": 500}`, utils.ErrConfiguration, "fov"},
		{"bad fov", `{"fov": 190}`, utils.ErrInvalidParameter, "fov"},
		{"bad mode", `{"fov": 70, "rescale_mode": "mean"}`, utils.ErrInvalidParameter, "rescale_mode"},
		{"bad bounds", `{"fov": 70, "min_depth": 5, "max_depth": 1}`, utils.ErrInvalidParameter, "max_depth"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader(strings.NewReader(tc.json))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, tc.target), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.substr)
		})
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foodvolume.json")
	test.That(t, os.WriteFile(path, []byte(`{"focal_length": ${FOODVOLUME_FOCAL}}`), 0o600), test.ShouldBeNil)

	t.Setenv("FOODVOLUME_FOCAL", "640")
	conf, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *conf.FocalLength, test.ShouldEqual, 640)

	_, err = Read(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"fov": -3}`), 0o600), test.ShouldBeNil)
	_, err = Read(bad)
	test.That(t, errors.Is(err, utils.ErrInvalidParameter), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad.json")
}

func TestSchema(t *testing.T) {
	raw, err := SchemaJSON()
	test.That(t, err, test.ShouldBeNil)
	var schema map[string]interface{}
	test.That(t, json.Unmarshal(raw, &schema), test.ShouldBeNil)
	for _, key := range []string{"fov", "focal_length", "depth_rescaling", "relaxation_param", "plane_fit", "footprint_model"} {
		test.That(t, string(raw), test.ShouldContainSubstring, `"`+key+`"`)
	}
}
