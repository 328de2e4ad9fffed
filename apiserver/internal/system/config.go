package system

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "API_INFO"

// DocsConfig describes the API to readers of its documentation.
type DocsConfig struct {
	// Title is used as both the OpenAPI document title and the docs page title.
	Title string `envconfig:"TITLE" default:"queuebridge"`
	// Description is the OpenAPI document description. It may contain markup.
	Description string `envconfig:"DESCRIPTION"`
	// Version is the version of the API being documented.
	Version string `envconfig:"VERSION" default:"1.0"`
	// StylesPath optionally names a stylesheet to inject into the docs page.
	StylesPath string `envconfig:"STYLES_PATH"`
}

// GetDocsConfigFromEnvironment returns a DocsConfig populated from environment
// variables.
func GetDocsConfigFromEnvironment() (DocsConfig, error) {
	c := DocsConfig{}
	err := envconfig.Process(envconfigPrefix, &c)
	return c, errors.Wrap(err, "error getting API info from environment")
}
