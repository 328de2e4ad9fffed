package restmachinery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/krancour/queuebridge/sdk/meta"
	"github.com/stretchr/testify/require"
)

func TestNewBaseClient(t *testing.T) {
	client := NewBaseClient("http://localhost:8080/", true)
	require.Equal(t, "http://localhost:8080", client.APIAddress)
	require.IsType(t, &http.Transport{}, client.HTTPClient.Transport)
	require.True(
		t,
		client.HTTPClient.Transport.(*http.Transport).TLSClientConfig.InsecureSkipVerify, // nolint: lll
	)
}

func TestExecuteRequest(t *testing.T) {
	type testObj struct {
		Foo string `json:"foo"`
	}
	testCases := []struct {
		name       string
		handler    func(*testing.T) http.HandlerFunc
		req        OutboundRequest
		assertions func(*testing.T, error, *testObj)
	}{
		{
			name: "success with request and response bodies",
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					require.Equal(t, http.MethodPost, r.Method)
					require.Equal(t, "/api/foo", r.URL.Path)
					require.Equal(t, "bar", r.URL.Query().Get("bat"))
					require.Equal(t, "application/json", r.Header.Get("Content-Type"))
					bodyBytes, err := io.ReadAll(r.Body)
					require.NoError(t, err)
					require.JSONEq(t, `{"foo":"bar"}`, string(bodyBytes))
					w.WriteHeader(http.StatusAccepted)
					w.Write([]byte(`{"foo":"baz"}`)) // nolint: errcheck
				}
			},
			req: OutboundRequest{
				Method:      http.MethodPost,
				Path:        "api/foo",
				QueryParams: map[string]string{"bat": "bar"},
				ReqBodyObj:  testObj{Foo: "bar"},
				SuccessCode: http.StatusAccepted,
			},
			assertions: func(t *testing.T, err error, respObj *testObj) {
				require.NoError(t, err)
				require.Equal(t, "baz", respObj.Foo)
			},
		},
		{
			name: "bad request",
			handler: func(*testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadRequest)
					w.Write( // nolint: errcheck
						[]byte(`{"kind":"BadRequestError","reason":"nope","details":["a"]}`),
					)
				}
			},
			req: OutboundRequest{
				Method:      http.MethodPost,
				Path:        "api/foo",
				SuccessCode: http.StatusAccepted,
			},
			assertions: func(t *testing.T, err error, _ *testObj) {
				require.Error(t, err)
				badRequestErr, ok := err.(*meta.ErrBadRequest)
				require.True(t, ok)
				require.Equal(t, "nope", badRequestErr.Reason)
				require.Equal(t, []string{"a"}, badRequestErr.Details)
			},
		},
		{
			name: "plain text internal server error",
			handler: func(*testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "text/plain")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte("broker unavailable")) // nolint: errcheck
				}
			},
			req: OutboundRequest{
				Method:      http.MethodGet,
				Path:        "api/foo",
				SuccessCode: http.StatusNoContent,
			},
			assertions: func(t *testing.T, err error, _ *testObj) {
				require.Error(t, err)
				internalErr, ok := err.(*meta.ErrInternalServer)
				require.True(t, ok)
				require.Equal(t, "broker unavailable", internalErr.Reason)
			},
		},
		{
			name: "unmapped status",
			handler: func(*testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusTeapot)
				}
			},
			req: OutboundRequest{
				Method: http.MethodGet,
				Path:   "api/foo",
			},
			assertions: func(t *testing.T, err error, _ *testObj) {
				require.EqualError(t, err, "received 418 from API server")
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(testCase.handler(t))
			defer server.Close()
			client := NewBaseClient(server.URL, false)
			respObj := &testObj{}
			testCase.req.RespObj = respObj
			err := client.ExecuteRequest(context.Background(), testCase.req)
			testCase.assertions(t, err, respObj)
		})
	}
}
