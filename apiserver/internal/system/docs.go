package system

import (
	"bytes"
	"encoding/json"
	"html/template"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// DocsVersion is the name under which the OpenAPI document is served.
const DocsVersion = "V1"

// DocsService serves the API's documentation in machine and human readable
// forms. All documents are rendered once, when the service is created.
type DocsService interface {
	// Index returns the HTML landing page for the API docs.
	Index() []byte
	// OpenAPIJSON returns the OpenAPI document as JSON.
	OpenAPIJSON() []byte
	// OpenAPIYAML returns the OpenAPI document as YAML.
	OpenAPIYAML() []byte
}

type docsService struct {
	index       []byte
	openAPIJSON []byte
	openAPIYAML []byte
}

// NewDocsService returns a DocsService describing the API per the provided
// DocsConfig.
func NewDocsService(config DocsConfig) (DocsService, error) {
	d := &docsService{}
	var err error
	if d.openAPIJSON, err = json.Marshal(newOpenAPIDocument(config)); err != nil {
		return nil, errors.Wrap(err, "error marshaling OpenAPI document")
	}
	if d.openAPIYAML, err = yaml.JSONToYAML(d.openAPIJSON); err != nil {
		return nil, errors.Wrap(err, "error converting OpenAPI document to YAML")
	}
	buf := &bytes.Buffer{}
	if err = indexTemplate.Execute(
		buf,
		struct {
			Title      string
			StylesPath string
			SpecURL    string
		}{
			Title:      config.Title,
			StylesPath: config.StylesPath,
			SpecURL:    "/swagger/" + DocsVersion + "/swagger.json",
		},
	); err != nil {
		return nil, errors.Wrap(err, "error rendering docs index")
	}
	d.index = buf.Bytes()
	return d, nil
}

func (d *docsService) Index() []byte {
	return d.index
}

func (d *docsService) OpenAPIJSON() []byte {
	return d.openAPIJSON
}

func (d *docsService) OpenAPIYAML() []byte {
	return d.openAPIYAML
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
{{- if .StylesPath }}
<link rel="stylesheet" href="{{ .StylesPath }}">
{{- end }}
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.ui = SwaggerUIBundle({
  url: {{ .SpecURL }},
  dom_id: "#swagger-ui"
});
</script>
</body>
</html>
`))
