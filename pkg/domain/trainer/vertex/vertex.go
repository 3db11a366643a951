// training jobs on a managed pipeline service, over REST.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelyard/modelyard/pkg/domain/credential"
	"github.com/modelyard/modelyard/pkg/domain/trainer"
	xe "github.com/modelyard/modelyard/pkg/errors"
)

// Subscription is the credential cache entry used for the training service.
const Subscription = "trainer"

type Config struct {
	Endpoint        string
	Project         string
	Location        string
	TemplateUri     string
	ServiceAccount  string
	OutputDirectory string
	SystemKey       string
	Timeout         time.Duration
}

type client struct {
	conf       Config
	creds      credential.Provider
	httpclient *http.Client
}

var _ trainer.Interface = &client{}

func New(conf Config, creds credential.Provider) *client {
	return &client{conf: conf, creds: creds, httpclient: http.DefaultClient}
}

type startRequest struct {
	DisplayName   string `json:"displayName"`
	RuntimeConfig struct {
		GcsOutputDirectory string                 `json:"gcsOutputDirectory"`
		ParameterValues    map[string]interface{} `json:"parameterValues"`
	} `json:"runtimeConfig"`
	ServiceAccount string `json:"serviceAccount"`
	TemplateUri    string `json:"templateUri"`
}

type startResponse struct {
	// full resource name, ".../pipelineJobs/<job id>"
	Name string `json:"name"`
}

func (c *client) Start(ctx context.Context, spec trainer.JobSpec) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.conf.Timeout)
	defer cancel()

	req := startRequest{
		DisplayName:    fmt.Sprintf("anomaly-detection-%s", spec.AssetTypeId),
		ServiceAccount: c.conf.ServiceAccount,
		TemplateUri:    c.conf.TemplateUri,
	}
	req.RuntimeConfig.GcsOutputDirectory = c.conf.OutputDirectory
	req.RuntimeConfig.ParameterValues = map[string]interface{}{
		"asset_type_id": spec.AssetTypeId,
		"features":      spec.Features,
		"system_key":    c.conf.SystemKey,
	}

	payload, err := c.do(ctx, http.MethodPost, c.jobsUrl(""), req)
	if err != nil {
		return "", err
	}

	resp := startResponse{}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", xe.Wrap(err)
	}

	jobId, err := JobIdFromResourceName(resp.Name)
	if err != nil {
		return "", err
	}
	return jobId, nil
}

func (c *client) Kill(ctx context.Context, jobId string) (string, error) {
	if jobId == "" {
		return "no job to kill", nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.conf.Timeout)
	defer cancel()

	_, err := c.do(ctx, http.MethodDelete, c.jobsUrl(jobId), nil)
	if err != nil {
		nf := new(notFoundError)
		if errors.As(err, &nf) {
			return fmt.Sprintf("job %s is already gone", jobId), nil
		}
		return "", err
	}
	return fmt.Sprintf("job %s killed", jobId), nil
}

func (c *client) jobsUrl(jobId string) string {
	url := fmt.Sprintf(
		"%s/v1/projects/%s/locations/%s/pipelineJobs",
		c.conf.Endpoint, c.conf.Project, c.conf.Location,
	)
	if jobId != "" {
		url += "/" + jobId
	}
	return url
}

func (c *client) do(ctx context.Context, method string, url string, body interface{}) ([]byte, error) {
	cred, err := c.creds.Get(ctx, Subscription)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

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
		return nil, &notFoundError{url: url}
	}
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		return nil, xe.Wrap(fmt.Errorf(
			"training service answered %d: %s", resp.StatusCode, string(payload),
		))
	}
	return payload, nil
}

type notFoundError struct {
	url string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.url)
}

// JobIdFromResourceName extracts the job id from a full resource name,
// the segment after the last "/pipelineJobs/".
func JobIdFromResourceName(name string) (string, error) {
	const marker = "/pipelineJobs/"
	at := strings.LastIndex(name, marker)
	if at < 0 {
		return "", xe.Wrap(fmt.Errorf("resource name %q has no pipelineJobs segment", name))
	}
	jobId := name[at+len(marker):]
	if jobId == "" || strings.Contains(jobId, "/") {
		return "", xe.Wrap(fmt.Errorf("resource name %q has no job id after pipelineJobs", name))
	}
	return jobId, nil
}
