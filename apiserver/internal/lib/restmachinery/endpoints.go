package restmachinery

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/krancour/queuebridge/sdk/meta"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// Endpoints is an interface to be implemented by all REST API endpoints.
type Endpoints interface {
	// Register is invoked in an Endpoints implementation to add its routes to
	// the provided router.
	Register(router *mux.Router)
}

// BaseEndpoints provides common functionality to all REST API endpoints.
type BaseEndpoints struct {
	Logger *zap.Logger
}

// InboundRequest models an inbound REST API request whose response is JSON.
type InboundRequest struct {
	// W is the http.ResponseWriter for the request.
	W http.ResponseWriter
	// R is the *http.Request itself.
	R *http.Request
	// ReqBodySchemaLoader optionally specifies a JSON schema the request body
	// must conform to.
	ReqBodySchemaLoader gojsonschema.JSONLoader
	// ReqBodyObj optionally specifies an object the request body should be
	// unmarshaled into.
	ReqBodyObj interface{}
	// EndpointLogic does the real work of the endpoint.
	EndpointLogic func() (interface{}, error)
	// SuccessCode is the HTTP status code returned when EndpointLogic returns
	// no error.
	SuccessCode int
}

// HumanRequest models an inbound request whose response is plain text or
// markup intended for a human or a browser.
type HumanRequest struct {
	W             http.ResponseWriter
	EndpointLogic func() (interface{}, error)
	SuccessCode   int
	// ContentType defaults to text/plain.
	ContentType string
}

func (b *BaseEndpoints) readAndValidateRequestBody(
	w http.ResponseWriter,
	r *http.Request,
	bodySchemaLoader gojsonschema.JSONLoader,
	bodyObj interface{},
) bool {
	defer r.Body.Close()
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		b.Logger.Warn("error reading request body", zap.Error(err))
		b.WriteAPIResponse(
			w,
			http.StatusBadRequest,
			&meta.ErrBadRequest{
				Reason: "Could not read request body.",
			},
		)
		return false
	}
	if bodySchemaLoader != nil {
		var validationResult *gojsonschema.Result
		validationResult, err = gojsonschema.Validate(
			bodySchemaLoader,
			gojsonschema.NewBytesLoader(bodyBytes),
		)
		if err != nil {
			// As long as the schema itself is valid, this means the request body
			// wasn't valid JSON.
			b.Logger.Debug("error validating request body", zap.Error(err))
			b.WriteAPIResponse(
				w,
				http.StatusBadRequest,
				&meta.ErrBadRequest{
					Reason: "Could not validate request body.",
				},
			)
			return false
		}
		if !validationResult.Valid() {
			verrStrs := make([]string, len(validationResult.Errors()))
			for i, verr := range validationResult.Errors() {
				verrStrs[i] = verr.String()
			}
			b.WriteAPIResponse(
				w,
				http.StatusBadRequest,
				&meta.ErrBadRequest{
					Reason:  "Request body failed JSON validation",
					Details: verrStrs,
				},
			)
			return false
		}
	}
	if bodyObj != nil {
		if err = json.Unmarshal(bodyBytes, bodyObj); err != nil {
			if bodySchemaLoader == nil {
				b.WriteAPIResponse(
					w,
					http.StatusBadRequest,
					&meta.ErrBadRequest{
						Reason: "Could not unmarshal request body.",
					},
				)
				return false
			}
			// The body already validated, so it was valid JSON. This is an
			// internal problem.
			b.Logger.Error("error unmarshaling request body", zap.Error(err))
			b.WriteAPIResponse(
				w,
				http.StatusInternalServerError,
				&meta.ErrInternalServer{},
			)
			return false
		}
	}
	return true
}

// ServeRequest handles an inbound request that is answered with JSON. Errors
// returned from the endpoint logic are mapped to an HTTP status by type.
// Untyped errors become a 500 that does not disclose the underlying error.
func (b *BaseEndpoints) ServeRequest(req InboundRequest) {
	if req.ReqBodySchemaLoader != nil || req.ReqBodyObj != nil {
		if !b.readAndValidateRequestBody(
			req.W,
			req.R,
			req.ReqBodySchemaLoader,
			req.ReqBodyObj,
		) {
			return
		}
	}
	respBodyObj, err := req.EndpointLogic()
	if err != nil {
		switch e := errors.Cause(err).(type) {
		case *meta.ErrBadRequest:
			b.WriteAPIResponse(req.W, http.StatusBadRequest, e)
		case *meta.ErrNotFound:
			b.WriteAPIResponse(req.W, http.StatusNotFound, e)
		case *meta.ErrInternalServer:
			b.WriteAPIResponse(req.W, http.StatusInternalServerError, e)
		default:
			b.Logger.Error(
				"error serving request",
				zap.String("path", req.R.URL.Path),
				zap.Error(err),
			)
			b.WriteAPIResponse(
				req.W,
				http.StatusInternalServerError,
				&meta.ErrInternalServer{},
			)
		}
		return
	}
	b.WriteAPIResponse(req.W, req.SuccessCode, respBodyObj)
}

// WriteAPIResponse writes the given status code and JSON response body.
func (b *BaseEndpoints) WriteAPIResponse(
	w http.ResponseWriter,
	statusCode int,
	response interface{},
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	responseBody, ok := response.([]byte)
	if !ok {
		var err error
		if responseBody, err = json.Marshal(response); err != nil {
			b.Logger.Error("error marshaling response body", zap.Error(err))
		}
	}
	if _, err := w.Write(responseBody); err != nil {
		b.Logger.Error("error writing response body", zap.Error(err))
	}
}

// ServeHumanRequest handles an inbound request that is answered with plain
// text (or whatever ContentType specifies). When the endpoint logic fails, the
// response is a plain text body equal to the root cause's error message.
func (b *BaseEndpoints) ServeHumanRequest(humanReq HumanRequest) {
	respBodyObj, err := humanReq.EndpointLogic()
	if err != nil {
		cause := errors.Cause(err)
		statusCode := http.StatusInternalServerError
		switch cause.(type) {
		case *meta.ErrBadRequest:
			statusCode = http.StatusBadRequest
		case *meta.ErrNotFound:
			statusCode = http.StatusNotFound
		default:
			b.Logger.Error("error serving request", zap.Error(err))
		}
		b.writeText(humanReq.W, statusCode, "", []byte(cause.Error()))
		return
	}
	var responseBody []byte
	switch r := respBodyObj.(type) {
	case []byte:
		responseBody = r
	case string:
		responseBody = []byte(r)
	case fmt.Stringer:
		responseBody = []byte(r.String())
	}
	b.writeText(
		humanReq.W,
		humanReq.SuccessCode,
		humanReq.ContentType,
		responseBody,
	)
}

func (b *BaseEndpoints) writeText(
	w http.ResponseWriter,
	statusCode int,
	contentType string,
	body []byte,
) {
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	if len(body) == 0 {
		return
	}
	if _, err := w.Write(body); err != nil {
		b.Logger.Error("error writing response body", zap.Error(err))
	}
}
