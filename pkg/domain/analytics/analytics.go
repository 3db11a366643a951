// Package analytics talks to the analytics warehouse holding asset telemetry.
//
// The warehouse speaks a BigQuery-shaped REST dialect: queries are POSTed to
// `{endpoint}/projects/{project}/queries` and row values come back as
// `{"rows": [{"f": [{"v": ...}]}]}`.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/modelyard/modelyard/pkg/domain/credential"
	xe "github.com/modelyard/modelyard/pkg/errors"
)

var ErrEmptyAttributes = errors.New("no feature attributes to count over")

// Subscription is the credential cache entry used for warehouse access.
const Subscription = "analytics"

type Interface interface {
	// CountRecords counts telemetry rows of the asset type
	// which carry every one of the given feature attributes.
	//
	// # Returns
	//
	// - int: number of matching rows
	//
	// - error: ErrEmptyAttributes when attributes is empty,
	// or errors from the warehouse.
	CountRecords(ctx context.Context, assetTypeId string, attributes []string) (int, error)

	// Purge deletes telemetry rows of the asset type older than olderThan.
	//
	// Called when a pipeline is uninstalled, so that a re-install does not
	// see the stale tail of the previous installation.
	Purge(ctx context.Context, assetTypeId string, olderThan time.Duration) error
}

type restClient struct {
	endpoint     string
	project      string
	dataset      string
	subscription string
	timeout      time.Duration
	creds        credential.Provider
	httpclient   *http.Client
}

var _ Interface = &restClient{}

// New creates an Interface backed by the warehouse REST API.
func New(
	endpoint string, project string, dataset string,
	timeout time.Duration, creds credential.Provider,
) *restClient {
	return &restClient{
		endpoint:     endpoint,
		project:      project,
		dataset:      dataset,
		subscription: Subscription,
		timeout:      timeout,
		creds:        creds,
		httpclient:   http.DefaultClient,
	}
}

type queryParameter struct {
	Name          string `json:"name"`
	ParameterType struct {
		Type string `json:"type"`
	} `json:"parameterType"`
	ParameterValue struct {
		Value string `json:"value"`
	} `json:"parameterValue"`
}

func stringParameter(name string, value string) queryParameter {
	p := queryParameter{Name: name}
	p.ParameterType.Type = "STRING"
	p.ParameterValue.Value = value
	return p
}

type queryRequest struct {
	Query           string           `json:"query"`
	UseLegacySql    bool             `json:"useLegacySql"`
	ParameterMode   string           `json:"parameterMode,omitempty"`
	QueryParameters []queryParameter `json:"queryParameters,omitempty"`
}

type queryResponse struct {
	Rows []struct {
		F []struct {
			V string `json:"v"`
		} `json:"f"`
	} `json:"rows"`
}

func (c *restClient) CountRecords(ctx context.Context, assetTypeId string, attributes []string) (int, error) {
	if len(attributes) == 0 {
		return 0, fmt.Errorf("%w: asset type %s", ErrEmptyAttributes, assetTypeId)
	}

	resp, err := c.query(ctx, queryRequest{
		Query:         BuildCountQuery(c.project, c.dataset, attributes),
		UseLegacySql:  false,
		ParameterMode: "NAMED",
		QueryParameters: []queryParameter{
			stringParameter("asset_type_id", assetTypeId),
		},
	})
	if err != nil {
		return 0, err
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].F) == 0 {
		return 0, xe.New("count query returned no rows")
	}
	count, err := strconv.Atoi(resp.Rows[0].F[0].V)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return count, nil
}

func (c *restClient) Purge(ctx context.Context, assetTypeId string, olderThan time.Duration) error {
	_, err := c.query(ctx, queryRequest{
		Query:         BuildPurgeQuery(c.project, c.dataset, olderThan),
		UseLegacySql:  false,
		ParameterMode: "NAMED",
		QueryParameters: []queryParameter{
			stringParameter("asset_type_id", assetTypeId),
		},
	})
	return err
}

func (c *restClient) query(ctx context.Context, req queryRequest) (*queryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cred, err := c.creds.Get(ctx, c.subscription)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	url := fmt.Sprintf("%s/projects/%s/queries", c.endpoint, c.project)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, xe.Wrap(err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	hresp, err := c.httpclient.Do(hreq)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer hresp.Body.Close()

	payload, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if hresp.StatusCode != http.StatusOK {
		return nil, xe.Wrap(fmt.Errorf("analytics query failed (status %d): %s", hresp.StatusCode, string(payload)))
	}

	resp := new(queryResponse)
	if err := json.Unmarshal(payload, resp); err != nil {
		return nil, xe.Wrap(err)
	}
	return resp, nil
}
