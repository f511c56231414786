package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/testutils"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).RunContext(context.Background(), append([]string{"foodvolume"}, args...))
	return out.String(), errOut.String(), err
}

func writeScene(t *testing.T, dir string) (string, string) {
	t.Helper()
	scene := testutils.NewTableScene(60, 60, 500, 1)
	scene.AddBox(image.Rect(20, 20, 30, 30), 0.02)
	scene.AddBox(image.Rect(45, 45, 48, 48), 0.01)
	depthPath := filepath.Join(dir, "depth.png")
	maskPath := filepath.Join(dir, "mask.png")
	test.That(t, rimage.WriteImageToFile(depthPath, scene.Depth.ToGray16()), test.ShouldBeNil)
	test.That(t, rimage.WriteImageToFile(maskPath, scene.Mask.ToImage()), test.ShouldBeNil)
	return depthPath, maskPath
}

func TestEstimateAction(t *testing.T) {
	dir := t.TempDir()
	depthPath, maskPath := writeScene(t, dir)
	pcdPath := filepath.Join(dir, "cloud.pcd")
	heightPath := filepath.Join(dir, "height.png")

	out, errOut, err := runApp(t, "estimate",
		"--depth", depthPath, "--mask", maskPath, "--focal-length", "500",
		"--pcd", pcdPath, "--heightmap", heightPath, "--json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "2 separate food regions")

	var res estimateResult
	test.That(t, json.Unmarshal([]byte(out), &res), test.ShouldBeNil)
	test.That(t, res.FoodPixels, test.ShouldEqual, 100)
	test.That(t, res.Components, test.ShouldEqual, 2)
	want := 100 * 0.02 * (0.98 / 500) * (0.98 / 500) * 1e6
	test.That(t, res.Milliliters, test.ShouldAlmostEqual, want, 1e-9)
	test.That(t, res.Liters, test.ShouldAlmostEqual, want/1000, 1e-12)
	test.That(t, res.PlaneInliers, test.ShouldEqual, res.PlanePixels)
	test.That(t, res.CameraMatrix, test.ShouldResemble, [][]float64{{500, 0, 30}, {0, 500, 30}, {0, 0, 1}})

	f, err := os.Open(pcdPath)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	cloud, err := pointcloud.ReadPCD(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 60*60)

	heights, err := rimage.ReadMask(heightPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, heights.Get(25, 25), test.ShouldBeTrue)
	test.That(t, heights.Get(5, 5), test.ShouldBeFalse)

	t.Run("plain output", func(t *testing.T) {
		out, _, err := runApp(t, "estimate", "--depth", depthPath, "--mask", maskPath, "--focal-length", "500")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "volume: 7.7 mL")
	})

	t.Run("camera from config", func(t *testing.T) {
		cfgPath := filepath.Join(dir, "cfg.json")
		test.That(t, os.WriteFile(cfgPath, []byte(`{"focal_length": 500, "footprint_model": "pinhole"}`), 0o600), test.ShouldBeNil)
		out, _, err := runApp(t, "--config", cfgPath, "estimate", "--depth", depthPath, "--mask", maskPath, "--json")
		test.That(t, err, test.ShouldBeNil)
		var res estimateResult
		test.That(t, json.Unmarshal([]byte(out), &res), test.ShouldBeNil)
		test.That(t, res.Milliliters, test.ShouldAlmostEqual, want, 1e-9)
	})

	t.Run("calibrated intrinsics", func(t *testing.T) {
		// calibrated at twice the resolution of the depth map
		calibPath := filepath.Join(dir, "intrinsics.json")
		calib := `{"width_px": 120, "height_px": 120, "fx": 1000, "fy": 1000, "ppx": 60, "ppy": 60}`
		test.That(t, os.WriteFile(calibPath, []byte(calib), 0o600), test.ShouldBeNil)
		out, _, err := runApp(t, "estimate", "--depth", depthPath, "--mask", maskPath, "--intrinsics", calibPath, "--json")
		test.That(t, err, test.ShouldBeNil)
		var res estimateResult
		test.That(t, json.Unmarshal([]byte(out), &res), test.ShouldBeNil)
		test.That(t, res.Milliliters, test.ShouldAlmostEqual, want, 1e-9)
		test.That(t, res.CameraMatrix[0], test.ShouldResemble, []float64{500, 0, 30})

		_, _, err = runApp(t, "estimate", "--depth", depthPath, "--mask", maskPath,
			"--intrinsics", calibPath, "--focal-length", "500")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "only one of")

		_, _, err = runApp(t, "estimate", "--depth", depthPath, "--mask", maskPath,
			"--intrinsics", filepath.Join(dir, "missing.json"))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("no camera", func(t *testing.T) {
		_, _, err := runApp(t, "estimate", "--depth", depthPath, "--mask", maskPath)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "fov or focal_length")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := runApp(t, "estimate", "--depth", filepath.Join(dir, "nope.png"), "--mask", maskPath, "--fov", "60")
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestConfigActions(t *testing.T) {
	out, _, err := runApp(t, "config", "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "relaxation_param")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.json")
	test.That(t, os.WriteFile(cfgPath, []byte(`{"fov": 65}`), 0o600), test.ShouldBeNil)
	out, _, err = runApp(t, "config", "check", cfgPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, `"fov": 65`)
	test.That(t, out, test.ShouldContainSubstring, `"footprint_model": "plane_projected"`)

	_, _, err = runApp(t, "config", "check")
	test.That(t, err, test.ShouldNotBeNil)
}
