package restmachinery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/krancour/queuebridge/sdk/meta"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const testSchema = `{
	"type": "object",
	"required": ["value"],
	"additionalProperties": false,
	"properties": {
		"value": {"type": "string"}
	}
}`

type testBody struct {
	Value string `json:"value"`
}

func TestServeRequest(t *testing.T) {
	testCases := []struct {
		name          string
		body          string
		schemaLoader  gojsonschema.JSONLoader
		endpointLogic func(*testBody) (interface{}, error)
		assertions    func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:         "body is not JSON",
			body:         "{",
			schemaLoader: gojsonschema.NewStringLoader(testSchema),
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
				require.Contains(t, rr.Body.String(), "BadRequestError")
			},
		},
		{
			name:         "body fails validation",
			body:         `{"value":42}`,
			schemaLoader: gojsonschema.NewStringLoader(testSchema),
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
				badRequestErr := meta.ErrBadRequest{}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &badRequestErr))
				require.Equal(t, "Request body failed JSON validation", badRequestErr.Reason)
				require.NotEmpty(t, badRequestErr.Details)
			},
		},
		{
			name:         "typed error from endpoint logic",
			body:         `{"value":"foo"}`,
			schemaLoader: gojsonschema.NewStringLoader(testSchema),
			endpointLogic: func(*testBody) (interface{}, error) {
				return nil, errors.Wrap(&meta.ErrNotFound{Type: "Message", ID: "foo"}, "wrapped")
			},
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusNotFound, rr.Code)
				require.Contains(t, rr.Body.String(), "NotFoundError")
			},
		},
		{
			name:         "untyped error from endpoint logic",
			body:         `{"value":"foo"}`,
			schemaLoader: gojsonschema.NewStringLoader(testSchema),
			endpointLogic: func(*testBody) (interface{}, error) {
				return nil, errors.New("something secret went wrong")
			},
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, rr.Code)
				require.Contains(t, rr.Body.String(), "InternalServerError")
				require.NotContains(t, rr.Body.String(), "secret")
			},
		},
		{
			name:         "success",
			body:         `{"value":"foo"}`,
			schemaLoader: gojsonschema.NewStringLoader(testSchema),
			endpointLogic: func(body *testBody) (interface{}, error) {
				return body, nil
			},
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusAccepted, rr.Code)
				require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
				require.JSONEq(t, `{"value":"foo"}`, rr.Body.String())
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			b := &BaseEndpoints{Logger: zap.NewNop()}
			body := &testBody{}
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(
				http.MethodPost,
				"/",
				strings.NewReader(testCase.body),
			)
			b.ServeRequest(
				InboundRequest{
					W:                   rr,
					R:                   req,
					ReqBodySchemaLoader: testCase.schemaLoader,
					ReqBodyObj:          body,
					EndpointLogic: func() (interface{}, error) {
						require.NotNil(t, testCase.endpointLogic, "endpoint logic invoked")
						return testCase.endpointLogic(body)
					},
					SuccessCode: http.StatusAccepted,
				},
			)
			testCase.assertions(t, rr)
		})
	}
}

func TestServeHumanRequest(t *testing.T) {
	testCases := []struct {
		name          string
		endpointLogic func() (interface{}, error)
		successCode   int
		contentType   string
		assertions    func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "no content",
			endpointLogic: func() (interface{}, error) {
				return nil, nil
			},
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusNoContent, rr.Code)
				require.Empty(t, rr.Body.String())
			},
		},
		{
			name: "root cause is disclosed verbatim",
			endpointLogic: func() (interface{}, error) {
				return nil, errors.Wrap(
					errors.New("connection refused"),
					"error writing message",
				)
			},
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, rr.Code)
				require.Equal(t, "connection refused", rr.Body.String())
				require.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
			},
		},
		{
			name: "typed error",
			endpointLogic: func() (interface{}, error) {
				return nil, &meta.ErrBadRequest{Reason: "nope"}
			},
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
				require.Equal(t, "Bad request: nope", rr.Body.String())
			},
		},
		{
			name: "string body",
			endpointLogic: func() (interface{}, error) {
				return "hello", nil
			},
			successCode: http.StatusOK,
			contentType: "text/html; charset=utf-8",
			assertions: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, rr.Code)
				require.Equal(t, "hello", rr.Body.String())
				require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			b := &BaseEndpoints{Logger: zap.NewNop()}
			rr := httptest.NewRecorder()
			successCode := testCase.successCode
			if successCode == 0 {
				successCode = http.StatusNoContent
			}
			b.ServeHumanRequest(
				HumanRequest{
					W:             rr,
					EndpointLogic: testCase.endpointLogic,
					SuccessCode:   successCode,
					ContentType:   testCase.contentType,
				},
			)
			testCase.assertions(t, rr)
		})
	}
}
