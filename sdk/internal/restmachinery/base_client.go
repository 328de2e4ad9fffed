package restmachinery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/krancour/queuebridge/sdk/meta"
	"github.com/pkg/errors"
)

// BaseClient provides "API machinery" used by all the specialized API clients.
// Its various functions remove the tedium from common API-related operations
// like submitting requests and mapping errors to Go types.
type BaseClient struct {
	APIAddress string
	HTTPClient *http.Client
}

// NewBaseClient returns a BaseClient that talks to the API server at the given
// address.
func NewBaseClient(apiAddress string, allowInsecure bool) *BaseClient {
	return &BaseClient{
		APIAddress: strings.TrimSuffix(apiAddress, "/"),
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: allowInsecure, // nolint: gosec
				},
			},
		},
	}
}

// ExecuteRequest accepts a context and an OutboundRequest. It submits the
// request and, if a RespObj was specified, unmarshals the response body into
// it.
func (b *BaseClient) ExecuteRequest(
	ctx context.Context,
	req OutboundRequest,
) error {
	resp, err := b.SubmitRequest(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if req.RespObj != nil {
		respBodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "error reading response body")
		}
		if err := json.Unmarshal(respBodyBytes, req.RespObj); err != nil {
			return errors.Wrap(err, "error unmarshaling response body")
		}
	}
	return nil
}

// SubmitRequest accepts a context and an OutboundRequest. It submits the
// request and, if the response status is not the expected success code,
// returns an error of the type implied by the response status.
func (b *BaseClient) SubmitRequest(
	ctx context.Context,
	req OutboundRequest,
) (*http.Response, error) {
	var reqBodyReader io.Reader
	if req.ReqBodyObj != nil {
		switch rb := req.ReqBodyObj.(type) {
		case []byte:
			reqBodyReader = bytes.NewBuffer(rb)
		default:
			reqBodyBytes, err := json.Marshal(req.ReqBodyObj)
			if err != nil {
				return nil, errors.Wrap(err, "error marshaling request body")
			}
			reqBodyReader = bytes.NewBuffer(reqBodyBytes)
		}
	}

	r, err := http.NewRequestWithContext(
		ctx,
		req.Method,
		fmt.Sprintf("%s/%s", b.APIAddress, req.Path),
		reqBodyReader,
	)
	if err != nil {
		return nil, errors.Wrapf(
			err,
			"error creating request %s %s",
			req.Method,
			req.Path,
		)
	}
	if len(req.QueryParams) > 0 {
		q := r.URL.Query()
		for k, v := range req.QueryParams {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
	if reqBodyReader != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		r.Header.Add(k, v)
	}

	resp, err := b.HTTPClient.Do(r)
	if err != nil {
		return nil, errors.Wrap(err, "error invoking API")
	}

	if (req.SuccessCode == 0 && resp.StatusCode != http.StatusOK) ||
		(req.SuccessCode != 0 && resp.StatusCode != req.SuccessCode) {
		defer resp.Body.Close()
		return nil, b.mapError(resp)
	}
	return resp, nil
}

// mapError maps an unexpected response to an error of the type implied by its
// status code.
func (b *BaseClient) mapError(resp *http.Response) error {
	// HTTP Response code hints at what sort of error might be in the body of
	// the response
	var apiErr error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		apiErr = &meta.ErrBadRequest{}
	case http.StatusNotFound:
		apiErr = &meta.ErrNotFound{}
	case http.StatusInternalServerError:
		apiErr = &meta.ErrInternalServer{}
	default:
		return errors.Errorf("received %d from API server", resp.StatusCode)
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading error response body")
	}
	if err = json.Unmarshal(bodyBytes, apiErr); err != nil {
		// Some endpoints disclose the underlying error as plain text.
		if internalErr, ok := apiErr.(*meta.ErrInternalServer); ok {
			internalErr.Reason = string(bodyBytes)
			return internalErr
		}
		return errors.Wrap(err, "error unmarshaling error response body")
	}
	return apiErr
}
