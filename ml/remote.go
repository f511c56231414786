package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"
)

// DefaultOutputName names the output of a server that answers with a single unnamed tensor.
const DefaultOutputName = "output"

// DefaultRemoteTimeout bounds a single remote inference when no timeout is given.
const DefaultRemoteTimeout = 30 * time.Second

// maxErrorBody is how much of a failed response is kept for the error message.
const maxErrorBody = 4096

// RemoteModel runs inference on a model server speaking the TensorFlow Serving REST predict
// API in columnar form: tensors are posted as {"inputs": {name: nested array}} and come back
// as {"outputs": {name: nested array}}, or as {"outputs": nested array} for a single output.
type RemoteModel struct {
	url    string
	client *http.Client
}

// NewRemoteModel returns a model served at rawURL, typically
// http://host:8501/v1/models/<name>:predict. A non-positive timeout uses DefaultRemoteTimeout.
func NewRemoteModel(rawURL string, timeout time.Duration) (*RemoteModel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "bad model url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("model url %q must be http or https", rawURL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("model url %q has no host", rawURL)
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteModel{
		url:    u.String(),
		client: &http.Client{Timeout: timeout, Transport: &ochttp.Transport{}},
	}, nil
}

type predictRequest struct {
	Inputs map[string]interface{} `json:"inputs"`
}

type predictResponse struct {
	Outputs json.RawMessage `json:"outputs"`
	Error   string          `json:"error"`
}

// Infer posts tensors to the model server and decodes its outputs as float64 tensors.
func (rm *RemoteModel) Infer(ctx context.Context, tensors Tensors) (_ Tensors, err error) {
	ctx, span := trace.StartSpan(ctx, "foodvolume::ml::RemoteModel::Infer")
	defer span.End()

	req := predictRequest{Inputs: make(map[string]interface{}, len(tensors))}
	for name, t := range tensors {
		nested, err := nestTensor(t)
		if err != nil {
			return nil, errors.Wrapf(err, "input tensor %q", name)
		}
		req.Inputs[name] = nested
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, rm.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := rm.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "model server unreachable")
	}
	defer func() {
		err = multierr.Combine(err, resp.Body.Close())
	}()

	if resp.StatusCode != http.StatusOK {
		msg, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return nil, errors.Wrapf(readErr, "model server returned %s", resp.Status)
		}
		var decoded predictResponse
		if json.Unmarshal(msg, &decoded) == nil && decoded.Error != "" {
			return nil, errors.Errorf("model server returned %s: %s", resp.Status, decoded.Error)
		}
		return nil, errors.Errorf("model server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var decoded predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "cannot decode model server response")
	}
	if decoded.Error != "" {
		return nil, errors.Errorf("model server error: %s", decoded.Error)
	}
	return decodeOutputs(decoded.Outputs)
}

// decodeOutputs accepts both the named and the single output forms.
func decodeOutputs(raw json.RawMessage) (Tensors, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("model server response has no outputs")
	}
	named := map[string]json.RawMessage{}
	if raw[0] != '{' {
		named[DefaultOutputName] = raw
	} else if err := json.Unmarshal(raw, &named); err != nil {
		return nil, errors.Wrap(err, "cannot decode model outputs")
	}
	out := make(Tensors, len(named))
	for name, value := range named {
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, errors.Wrapf(err, "output tensor %q", name)
		}
		t, err := unnestTensor(v)
		if err != nil {
			return nil, errors.Wrapf(err, "output tensor %q", name)
		}
		out[name] = t
	}
	return out, nil
}

// nestTensor lays a dense tensor out as nested arrays following its shape.
func nestTensor(t *tensor.Dense) (interface{}, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	shape := []int(t.Shape())
	if len(shape) == 0 {
		return nil, errors.New("scalar tensors are not supported")
	}
	data, err := convertToFloat64Slice(t.Data())
	if err != nil {
		return nil, err
	}
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(data) || size == 0 {
		return nil, errors.Errorf("tensor of shape %v holds %d values", shape, len(data))
	}
	return nest(data, shape), nil
}

func nest(data []float64, shape []int) interface{} {
	if len(shape) == 1 {
		return data
	}
	stride := len(data) / shape[0]
	out := make([]interface{}, shape[0])
	for i := range out {
		out[i] = nest(data[i*stride:(i+1)*stride], shape[1:])
	}
	return out
}

// unnester flattens decoded JSON arrays, recording the length of each level.
type unnester struct {
	shape     []int
	data      []float64
	leafDepth int
}

func (u *unnester) walk(v interface{}, depth int) error {
	switch v := v.(type) {
	case float64:
		if u.leafDepth < 0 {
			u.leafDepth = depth
		}
		if depth != u.leafDepth || depth != len(u.shape) {
			return errors.New("ragged nested array")
		}
		u.data = append(u.data, v)
	case []interface{}:
		switch {
		case u.leafDepth >= 0 && depth >= u.leafDepth:
			return errors.New("ragged nested array")
		case depth == len(u.shape):
			u.shape = append(u.shape, len(v))
		case u.shape[depth] != len(v):
			return errors.Errorf("ragged nested array: %d and %d elements at depth %d", u.shape[depth], len(v), depth)
		}
		for _, e := range v {
			if err := u.walk(e, depth+1); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("unexpected %T in tensor", v)
	}
	return nil
}

// unnestTensor turns decoded nested arrays of numbers into a float64 tensor.
func unnestTensor(v interface{}) (*tensor.Dense, error) {
	u := &unnester{leafDepth: -1}
	if err := u.walk(v, 0); err != nil {
		return nil, err
	}
	if len(u.shape) == 0 {
		return nil, errors.New("scalar tensors are not supported")
	}
	if len(u.data) == 0 {
		return nil, errors.Errorf("empty tensor of shape %v", u.shape)
	}
	return tensor.New(tensor.WithShape(u.shape...), tensor.WithBacking(u.data)), nil
}
