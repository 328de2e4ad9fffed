package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/krancour/queuebridge/apiserver/internal/lib/restmachinery"
	"github.com/krancour/queuebridge/apiserver/internal/system"
)

type docsEndpoints struct {
	*restmachinery.BaseEndpoints
	service system.DocsService
}

// NewDocsEndpoints returns the Endpoints that serve the API's documentation.
func NewDocsEndpoints(
	baseEndpoints *restmachinery.BaseEndpoints,
	service system.DocsService,
) restmachinery.Endpoints {
	return &docsEndpoints{
		BaseEndpoints: baseEndpoints,
		service:       service,
	}
}

func (d *docsEndpoints) Register(router *mux.Router) {
	// Redirect to the docs
	router.HandleFunc(
		"/",
		func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/swagger/index.html", http.StatusFound)
		},
	).Methods(http.MethodGet)

	// Docs landing page
	router.HandleFunc(
		"/swagger/index.html",
		d.serveDocument("text/html; charset=utf-8", d.service.Index),
	).Methods(http.MethodGet)

	// OpenAPI document
	router.HandleFunc(
		"/swagger/"+system.DocsVersion+"/swagger.json",
		d.serveDocument("application/json", d.service.OpenAPIJSON),
	).Methods(http.MethodGet)

	// OpenAPI document as YAML
	router.HandleFunc(
		"/swagger/"+system.DocsVersion+"/swagger.yaml",
		d.serveDocument("application/yaml", d.service.OpenAPIYAML),
	).Methods(http.MethodGet)
}

func (d *docsEndpoints) serveDocument(
	contentType string,
	document func() []byte,
) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		d.ServeHumanRequest(
			restmachinery.HumanRequest{
				W: w,
				EndpointLogic: func() (interface{}, error) {
					return document(), nil
				},
				SuccessCode: http.StatusOK,
				ContentType: contentType,
			},
		)
	}
}
