package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/foodvolume/logging"
	"go.viam.com/foodvolume/ml"
	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/testutils"
	"go.viam.com/foodvolume/volume"
)

func newTestServer(t *testing.T, focal float64) *httptest.Server {
	t.Helper()
	cfg := volume.DefaultConfig()
	cfg.FocalLength = &focal
	est, err := volume.NewEstimator(nil, nil, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	srv := httptest.NewServer(NewServer(est, Options{MaxConcurrent: 2}, logging.NewTestLogger(t)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func encodedScene(t *testing.T) (string, string) {
	t.Helper()
	scene := testutils.NewTableScene(40, 40, 500, 1)
	scene.AddBox(image.Rect(15, 15, 25, 25), 0.02)
	depth, err := rimage.EncodeDepthPNG(scene.Depth)
	test.That(t, err, test.ShouldBeNil)
	var mask bytes.Buffer
	test.That(t, png.Encode(&mask, scene.Mask.ToImage()), test.ShouldBeNil)
	return base64.StdEncoding.EncodeToString(depth), base64.StdEncoding.EncodeToString(mask.Bytes())
}

func post(t *testing.T, srv *httptest.Server, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/predict", "application/json", strings.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	return resp.StatusCode, string(raw)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, 500)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	test.That(t, err, test.ShouldBeNil)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, resp.Header.Get("Access-Control-Allow-Origin"), test.ShouldEqual, "*")
}

func TestPredict(t *testing.T) {
	depth, mask := encodedScene(t)
	// the box is 10x10 pixels, 2 cm tall, with its top 0.98 m from the camera
	want := 100 * 0.02 * (0.98 / 500) * (0.98 / 500) * 1e6

	t.Run("configured camera", func(t *testing.T) {
		srv := newTestServer(t, 500)
		body, err := json.Marshal(PredictRequest{Depth: depth, Mask: mask})
		test.That(t, err, test.ShouldBeNil)
		code, raw := post(t, srv, string(body))
		test.That(t, code, test.ShouldEqual, http.StatusOK)
		var resp PredictResponse
		test.That(t, json.Unmarshal([]byte(raw), &resp), test.ShouldBeNil)
		test.That(t, resp.Volumes, test.ShouldHaveLength, 1)
		test.That(t, resp.Volumes[0], test.ShouldAlmostEqual, want, 1e-9)
	})

	t.Run("camera from the request", func(t *testing.T) {
		srv := newTestServer(t, 250)
		f, plate := 500.0, 0.27
		body, err := json.Marshal(PredictRequest{Depth: depth, Mask: mask, FocalLength: &f, PlateDiameter: &plate})
		test.That(t, err, test.ShouldBeNil)
		code, raw := post(t, srv, string(body))
		test.That(t, code, test.ShouldEqual, http.StatusOK)
		var resp PredictResponse
		test.That(t, json.Unmarshal([]byte(raw), &resp), test.ShouldBeNil)
		test.That(t, resp.Volumes[0], test.ShouldAlmostEqual, want, 1e-9)
	})
}

func TestPredictImage(t *testing.T) {
	scene := testutils.NewTableScene(40, 40, 500, 1)
	scene.AddBox(image.Rect(15, 15, 25, 25), 0.02)
	want := 100 * 0.02 * (0.98 / 500) * (0.98 / 500) * 1e6
	var photo bytes.Buffer
	test.That(t, png.Encode(&photo, scene.Mask.ToImage()), test.ShouldBeNil)
	body, err := json.Marshal(PredictRequest{Img: base64.StdEncoding.EncodeToString(photo.Bytes())})
	test.That(t, err, test.ShouldBeNil)

	serve := func(t *testing.T, depth volume.DepthEstimator, seg volume.Segmenter) *httptest.Server {
		t.Helper()
		cfg := volume.DefaultConfig()
		focal := 500.0
		cfg.FocalLength = &focal
		est, err := volume.NewEstimator(depth, seg, cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		srv := httptest.NewServer(NewServer(est, Options{MaxConcurrent: 1}, logging.NewTestLogger(t)).Handler())
		t.Cleanup(srv.Close)
		return srv
	}
	check := func(t *testing.T, code int, raw string) {
		t.Helper()
		test.That(t, code, test.ShouldEqual, http.StatusOK)
		var resp PredictResponse
		test.That(t, json.Unmarshal([]byte(raw), &resp), test.ShouldBeNil)
		test.That(t, resp.Volumes, test.ShouldHaveLength, 1)
		test.That(t, resp.Volumes[0], test.ShouldAlmostEqual, want, 1e-9)
	}

	t.Run("static models", func(t *testing.T) {
		depth := &testutils.StaticDepth{Depth: scene.Depth}
		seg := &testutils.StaticSegmenter{Mask: scene.Mask}
		code, raw := post(t, serve(t, depth, seg), string(body))
		check(t, code, raw)
		test.That(t, depth.Calls.Load(), test.ShouldEqual, 1)
		test.That(t, seg.Calls.Load(), test.ShouldEqual, 1)
	})

	t.Run("model servers", func(t *testing.T) {
		depthRows := make([][]float64, 40)
		maskRows := make([][]float64, 40)
		for y := range depthRows {
			depthRows[y] = make([]float64, 40)
			maskRows[y] = make([]float64, 40)
			for x := range depthRows[y] {
				depthRows[y][x] = scene.Depth.GetDepth(x, y)
				if scene.Mask.Get(x, y) {
					maskRows[y][x] = 1
				}
			}
		}
		modelServer := func(rows [][]float64) *ml.RemoteModel {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				test.That(t, json.NewEncoder(w).Encode(map[string]interface{}{"outputs": [][][]float64{rows}}), test.ShouldBeNil)
			}))
			t.Cleanup(srv.Close)
			model, err := ml.NewRemoteModel(srv.URL+"/v1/models/m:predict", time.Second)
			test.That(t, err, test.ShouldBeNil)
			return model
		}
		depth := &ml.DepthModel{Model: modelServer(depthRows), InputWidth: 40, InputHeight: 40}
		seg := &ml.MaskModel{Model: modelServer(maskRows), InputWidth: 40, InputHeight: 40}
		code, raw := post(t, serve(t, depth, seg), string(body))
		check(t, code, raw)
	})

	t.Run("model failure", func(t *testing.T) {
		depth := &testutils.StaticDepth{Err: errors.New("model server down")}
		seg := &testutils.StaticSegmenter{Mask: scene.Mask}
		code, raw := post(t, serve(t, depth, seg), string(body))
		test.That(t, code, test.ShouldEqual, http.StatusUnprocessableEntity)
		test.That(t, raw, test.ShouldContainSubstring, "model server down")
		test.That(t, seg.Calls.Load(), test.ShouldEqual, 0)
	})
}

func TestPredictErrors(t *testing.T) {
	srv := newTestServer(t, 500)
	depth, mask := encodedScene(t)
	var empty bytes.Buffer
	test.That(t, png.Encode(&empty, rimage.NewMask(40, 40).ToImage()), test.ShouldBeNil)
	emptyMask := base64.StdEncoding.EncodeToString(empty.Bytes())

	for _, tc := range []struct {
		name   string
		body   string
		code   int
		substr string
	}{
		{"not json", `{"depth": `, http.StatusNotAcceptable, "cannot decode request"},
		{"nothing to measure", `{"fov": 70}`, http.StatusNotAcceptable, "img, or depth and mask"},
		{"bad base64", `{"img": "%%%"}`, http.StatusNotAcceptable, "not base64"},
		{"not an image", `{"img": "aGVsbG8="}`, http.StatusNotAcceptable, "cannot decode img"},
		{"mask only", `{"mask": "` + mask + `"}`, http.StatusNotAcceptable, "img, or depth and mask"},
		{"8-bit depth", `{"depth": "` + mask + `", "mask": "` + mask + `"}`, http.StatusNotAcceptable, "16-bit"},
		{"empty mask", `{"depth": "` + depth + `", "mask": "` + emptyMask + `"}`, http.StatusUnprocessableEntity, "mask"},
		{"two cameras", `{"depth": "` + depth + `", "mask": "` + mask + `", "fov": 70, "focal_length": 500}`,
			http.StatusUnprocessableEntity, "only one"},
		{"no models", `{"img": "` + mask + `"}`, http.StatusUnprocessableEntity, "no depth or segmentation model"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			code, raw := post(t, srv, tc.body)
			test.That(t, code, test.ShouldEqual, tc.code)
			test.That(t, raw, test.ShouldContainSubstring, tc.substr)
		})
	}

	resp, err := http.Get(srv.URL + "/predict")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)
}
