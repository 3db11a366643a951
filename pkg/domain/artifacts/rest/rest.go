// model artifacts served by a model host process, over REST.
//
// The host exposes stored models and blobs by bucket and path:
//
//	GET  /v1/models/{bucket}/{path}       -> model metadata (inputs, outputs)
//	POST /v1/models/{bucket}/{path}:exec  -> run the model
//	GET  /v1/blobs/{bucket}/{path}        -> raw blob content
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelyard/modelyard/pkg/domain/artifacts"
	xe "github.com/modelyard/modelyard/pkg/errors"
)

type client struct {
	host       string
	timeout    time.Duration
	httpclient *http.Client
}

var (
	_ artifacts.Registry   = &client{}
	_ artifacts.BlobReader = &client{}
)

func New(host string, timeout time.Duration) *client {
	return &client{host: host, timeout: timeout, httpclient: http.DefaultClient}
}

type modelMetadata struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

func (c *client) Open(ctx context.Context, bucket string, path string) (artifacts.TensorModel, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/models/%s/%s", c.host, bucket, path)
	payload, err := c.get(ctx, url, bucket, path)
	if err != nil {
		return nil, err
	}

	meta := modelMetadata{}
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, xe.Wrap(err)
	}

	return &model{client: c, execUrl: url + ":exec", meta: meta}, nil
}

func (c *client) ReadText(ctx context.Context, bucket string, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/blobs/%s/%s", c.host, bucket, path)
	payload, err := c.get(ctx, url, bucket, path)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (c *client) get(ctx context.Context, url string, bucket string, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", artifacts.ErrArtifactsNotReady, bucket, path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xe.Wrap(fmt.Errorf(
			"model host answered %d for %s: %s", resp.StatusCode, url, string(payload),
		))
	}
	return payload, nil
}

type model struct {
	client  *client
	execUrl string
	meta    modelMetadata
}

var _ artifacts.TensorModel = &model{}

func (m *model) Inputs() []string {
	return m.meta.Inputs
}

func (m *model) Outputs() []string {
	return m.meta.Outputs
}

type execRequest struct {
	Inputs map[string]artifacts.Tensor `json:"inputs"`
}

type execResponse struct {
	Outputs map[string]artifacts.Tensor `json:"outputs"`
}

func (m *model) Exec(ctx context.Context, inputs map[string]artifacts.Tensor) (map[string]artifacts.Tensor, error) {
	ctx, cancel := context.WithTimeout(ctx, m.client.timeout)
	defer cancel()

	raw, err := json.Marshal(execRequest{Inputs: inputs})
	if err != nil {
		return nil, xe.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.execUrl, bytes.NewReader(raw))
	if err != nil {
		return nil, xe.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.httpclient.Do(req)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xe.Wrap(fmt.Errorf(
			"model host answered %d for %s: %s", resp.StatusCode, m.execUrl, string(payload),
		))
	}

	out := execResponse{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, xe.Wrap(err)
	}
	return out.Outputs, nil
}
