package store

import "log/slog"

// Config holds configuration shared by repositories and the table administrator.
type Config struct {
	// TableName is the physical table name. Required.
	TableName string

	// Logger receives structured log output.
	// Default: slog.Default()
	Logger *slog.Logger
}

// validate fills in defaults for unset fields.
func (c *Config) validate() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validated returns a copy of c with defaults applied.
func (c Config) Validated() Config {
	c.validate()
	return c
}

// ClientConfig holds configuration for building a DynamoDB client.
type ClientConfig struct {
	// Region is the AWS region.
	// Default: "us-east-1"
	Region string

	// Endpoint overrides the service endpoint, e.g. "http://localhost:8000"
	// for DynamoDB Local. Empty uses the regional AWS endpoint.
	Endpoint string

	// AccessKeyID and SecretAccessKey set static credentials.
	// When AccessKeyID is empty the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// DefaultClientConfig returns a configuration for DynamoDB Local.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:8000",
		AccessKeyID:     "local",
		SecretAccessKey: "local",
	}
}

// validate ensures config values are usable.
func (c *ClientConfig) validate() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}
