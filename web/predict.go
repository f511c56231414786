package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	// register the formats accepted for photographs.
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/rimage/transform"
	"go.viam.com/foodvolume/volume"
)

// PredictRequest is the body of POST /predict. Either Img, or both Depth and Mask, must be set.
type PredictRequest struct {
	// Img is a base64 encoded photograph, measured with the estimator's models.
	Img string `json:"img,omitempty"`
	// Depth is a base64 encoded 16-bit PNG of metric depth in millimetres.
	Depth string `json:"depth,omitempty"`
	// Mask is a base64 encoded PNG where non-zero pixels are food.
	Mask        string   `json:"mask,omitempty"`
	FOV         *float64 `json:"fov,omitempty"`
	FocalLength *float64 `json:"focal_length,omitempty"`
	// PlateDiameter is accepted for compatibility and ignored.
	PlateDiameter *float64 `json:"plate_diameter,omitempty"`
}

// PredictResponse lists the estimated volumes in millilitres.
type PredictResponse struct {
	Volumes []float64 `json:"volumes"`
}

type predictHandler struct {
	s *Server
}

// ServeHTTP decodes the request, runs the estimator and returns the volume. Undecodable
// payloads are answered with 406 and failed estimations with 422.
func (h *predictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "foodvolume::web::predict")
	defer span.End()
	logger := h.s.logger

	var req PredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.s.options.MaxBodyBytes)).Decode(&req); err != nil {
		logger.Debugw("bad predict payload", "error", err)
		http.Error(w, "cannot decode request: "+err.Error(), http.StatusNotAcceptable)
		return
	}
	if req.PlateDiameter != nil {
		logger.Warnw("plate_diameter is not supported and was ignored", "plate_diameter", *req.PlateDiameter)
	}

	est := h.s.est
	if req.FOV != nil || req.FocalLength != nil {
		var err error
		est, err = est.WithCamera(transform.CameraConfig{FOV: req.FOV, FocalLength: req.FocalLength})
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	var run func() (*volume.Estimate, error)
	switch {
	case req.Img != "":
		img, err := decodeImage(req.Img)
		if err != nil {
			http.Error(w, "cannot decode img: "+err.Error(), http.StatusNotAcceptable)
			return
		}
		run = func() (*volume.Estimate, error) { return est.Estimate(ctx, img) }
	case req.Depth != "" && req.Mask != "":
		depth, mask, err := decodeDepthAndMask(req.Depth, req.Mask)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotAcceptable)
			return
		}
		run = func() (*volume.Estimate, error) { return est.EstimateFromDepth(ctx, depth, mask) }
	default:
		http.Error(w, "request needs img, or depth and mask", http.StatusNotAcceptable)
		return
	}

	if err := h.s.sem.Acquire(ctx, 1); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	res, err := run()
	h.s.sem.Release(1)
	if err != nil {
		logger.Infow("estimation failed", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(PredictResponse{Volumes: []float64{res.Milliliters()}}); err != nil {
		logger.Debugw("error writing response", "error", err)
	}
}

func decodeBase64(field, s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "%s is not base64", field)
	}
	return raw, nil
}

func decodeImage(s string) (image.Image, error) {
	raw, err := decodeBase64("img", s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

func decodeDepthAndMask(depthB64, maskB64 string) (*rimage.DepthMap, *rimage.Mask, error) {
	raw, err := decodeBase64("depth", depthB64)
	if err != nil {
		return nil, nil, err
	}
	depth, err := rimage.DecodeDepthMap(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot decode depth")
	}
	raw, err = decodeBase64("mask", maskB64)
	if err != nil {
		return nil, nil, err
	}
	mask, err := rimage.DecodeMask(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot decode mask")
	}
	return depth, mask, nil
}
