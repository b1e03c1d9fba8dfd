// Copyright 2024-2026 Aiku AI

package connector

import (
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the bridge configuration.
type Config struct {
	Homeserver struct {
		// Address is the client-server API URL of the homeserver.
		Address string `yaml:"address"`
		// Domain is the server name used in bridge-owned identifiers.
		Domain string `yaml:"domain"`
	} `yaml:"homeserver"`

	Appservice struct {
		// Hostname and Port are the listen address for appservice
		// transactions pushed by the homeserver.
		Hostname string `yaml:"hostname"`
		Port     uint16 `yaml:"port"`
		// Registration is the path to the appservice registration file.
		Registration string `yaml:"registration"`
	} `yaml:"appservice"`

	Skype struct {
		// GatewayURL is the Skype messaging gateway base URL.
		GatewayURL string `yaml:"gateway_url"`
		// Token is the skypetoken used for gateway authentication.
		Token string `yaml:"token"`
		// UserID is the bridge's own Skype identity, used to filter echoes
		// of its own sends from the event stream.
		UserID string `yaml:"user_id"`
	} `yaml:"skype"`

	Bridge struct {
		// Prefix is the namespace prefix for ghost localparts and room
		// aliases. Changing it orphans every identifier the bridge has
		// already published.
		Prefix string `yaml:"prefix"`
		// DisplaynameTemplate shapes ghost display names; {{.Name}} is the
		// Skype-side name.
		DisplaynameTemplate string `yaml:"displayname_template"`
		// DBPath is the SQLite file holding identity mappings.
		DBPath string `yaml:"db_path"`
	} `yaml:"bridge"`

	displaynameTemplate *template.Template `yaml:"-"`
}

// DisplaynameParams holds the parameters for rendering the displayname template.
type DisplaynameParams struct {
	Name string
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PostProcess applies defaults and validates required fields.
func (c *Config) PostProcess() error {
	if c.Homeserver.Address == "" || c.Homeserver.Domain == "" {
		return fmt.Errorf("homeserver.address and homeserver.domain are required")
	}
	if c.Skype.GatewayURL == "" {
		return fmt.Errorf("skype.gateway_url is required")
	}
	if c.Bridge.Prefix == "" {
		c.Bridge.Prefix = "skype"
	}
	if c.Bridge.DisplaynameTemplate == "" {
		c.Bridge.DisplaynameTemplate = "{{.Name}} (Skype)"
	}
	if c.Bridge.DBPath == "" {
		c.Bridge.DBPath = "mautrix-skype.db"
	}
	var err error
	c.displaynameTemplate, err = template.New("displayname").Parse(c.Bridge.DisplaynameTemplate)
	if err != nil {
		return fmt.Errorf("invalid displayname_template: %w", err)
	}
	return nil
}

// Namespace returns the identifier namespace described by this config.
func (c *Config) Namespace() Namespace {
	return Namespace{
		Prefix: c.Bridge.Prefix,
		Domain: c.Homeserver.Domain,
	}
}

// FormatDisplayname renders the displayname template for a resolved name.
func (c *Config) FormatDisplayname(name string) string {
	if c.displaynameTemplate == nil {
		return name
	}
	var buf []byte
	err := c.displaynameTemplate.Execute(
		(*templateBuffer)(&buf),
		DisplaynameParams{Name: name},
	)
	if err != nil {
		return name
	}
	return string(buf)
}

// templateBuffer is a simple io.Writer that appends to a byte slice.
type templateBuffer []byte

func (b *templateBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
