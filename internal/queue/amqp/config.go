package amqp

import (
	"net/url"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "AMQP"

// Config represents common configuration options for an AMQP connection. A
// connection string, if specified, takes precedence over the address and
// credentials.
type Config struct {
	ConnectionString  string `envconfig:"CONNECTION_STRING"`
	Address           string `envconfig:"ADDRESS"`
	Username          string `envconfig:"USERNAME"`
	Password          string `envconfig:"PASSWORD"`
	IsAzureServiceBus bool   `envconfig:"IS_AZURE_SERVICE_BUS" default:"false"`
}

// GetConfigFromEnvironment returns a Config populated from environment
// variables. A connection string, when present, is resolved into an address
// and credentials.
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting AMQP configuration from environment",
		)
	}
	return c.resolve()
}

func (c Config) resolve() (Config, error) {
	if c.ConnectionString != "" {
		var err error
		if c.Address, c.Username, c.Password, err =
			parseConnectionString(c.ConnectionString); err != nil {
			return c, err
		}
		c.IsAzureServiceBus = true
		return c, nil
	}
	if c.Address == "" || c.Username == "" || c.Password == "" {
		return c, errors.New(
			"AMQP configuration requires either a connection string or an " +
				"address, username, and password",
		)
	}
	return c, nil
}

// parseConnectionString resolves an Azure Service Bus connection string of the
// form Endpoint=sb://<namespace>/;SharedAccessKeyName=<name>;
// SharedAccessKey=<key> into an AMQPS address and SASL PLAIN credentials.
func parseConnectionString(
	connectionString string,
) (address string, username string, password string, err error) {
	var endpoint string
	for _, part := range strings.Split(connectionString, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return "", "", "", errors.Errorf(
				"malformed connection string segment %q",
				part,
			)
		}
		switch strings.ToLower(kv[0]) {
		case "endpoint":
			endpoint = kv[1]
		case "sharedaccesskeyname":
			username = kv[1]
		case "sharedaccesskey":
			password = kv[1]
		}
	}
	if endpoint == "" {
		return "", "", "", errors.New("connection string has no Endpoint")
	}
	if username == "" || password == "" {
		return "", "", "", errors.New(
			"connection string has no SharedAccessKeyName or SharedAccessKey",
		)
	}
	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return "", "", "", errors.Wrapf(
			err,
			"error parsing connection string endpoint %q",
			endpoint,
		)
	}
	if endpointURL.Host == "" {
		return "", "", "", errors.Errorf(
			"connection string endpoint %q has no host",
			endpoint,
		)
	}
	return "amqps://" + endpointURL.Host, username, password, nil
}
