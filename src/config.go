package deployns

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ConfigPathEnv     = "DEPLOY_CONFIG_PATH"
	defaultConfigPath = "config.json"
	defaultTTL        = 600
)

// DomainConfig is the deployment policy of one zone.
type DomainConfig struct {
	Domain                  string
	Provider                string
	Names                   []string
	MaxRecords              int // 0 means unlimited
	TTL                     int
	RemoveUnknownLineRecord bool
	ISPMap                  map[string]string
	Env                     map[string]string
}

// Config lists domains in the order they are declared in the file.
type Config struct {
	Path    string
	Domains []DomainConfig
}

type rawDomainConfig struct {
	Provider                string            `json:"provider" yaml:"provider"`
	Names                   []string          `json:"names" yaml:"names"`
	MaxRecords              *int              `json:"maxRecords" yaml:"maxRecords"`
	TTL                     *int              `json:"ttl" yaml:"ttl"`
	Env                     map[string]string `json:"env" yaml:"env"`
	RemoveUnknownLineRecord *bool             `json:"removeUnknownLineRecord" yaml:"removeUnknownLineRecord"`
	ISPMap                  map[string]string `json:"ispMap" yaml:"ispMap"`
}

type namedRawConfig struct {
	domain string
	raw    rawDomainConfig
}

// ConfigPath resolves the configuration path: the flag value, then
// DEPLOY_CONFIG_PATH, then config.json.
func ConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(ConfigPathEnv); v != "" {
		return v
	}
	return defaultConfigPath
}

// LoadConfig reads and validates a configuration file. JSON and YAML are
// accepted; the format follows the file extension. Every failure is a
// *ConfigError.
func LoadConfig(path string, providers map[string]ProviderFactory) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return ParseConfig(path, data, providers)
}

// ParseConfig decodes and validates configuration data.
func ParseConfig(path string, data []byte, providers map[string]ProviderFactory) (*Config, error) {
	var (
		entries []namedRawConfig
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = decodeYAMLConfig(data)
	default:
		entries, err = decodeJSONConfig(data)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg := &Config{Path: path}
	for _, e := range entries {
		dc, problems := e.raw.validate(e.domain, providers)
		if len(problems) > 0 {
			return nil, &ConfigError{Path: path, Domain: e.domain, Problems: problems}
		}
		cfg.Domains = append(cfg.Domains, dc)
	}
	return cfg, nil
}

func decodeJSONConfig(data []byte) ([]namedRawConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("top level must be an object keyed by domain")
	}

	var entries []namedRawConfig
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(truncated(err), "parse")
		}
		domain := tok.(string)
		if seen[domain] {
			return nil, errors.Errorf("domain %q declared twice", domain)
		}
		seen[domain] = true

		var raw rawDomainConfig
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(truncated(err), "domain %q", domain)
		}
		entries = append(entries, namedRawConfig{domain, raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(truncated(err), "parse")
	}
	return entries, nil
}

// truncated reports io.EOF inside the top-level object as a cut-off file.
func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func decodeYAMLConfig(data []byte) ([]namedRawConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top level must be a mapping keyed by domain")
	}

	var entries []namedRawConfig
	seen := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		domain := root.Content[i].Value
		if seen[domain] {
			return nil, errors.Errorf("domain %q declared twice", domain)
		}
		seen[domain] = true

		var raw rawDomainConfig
		if err := decodeYAMLStrict(root.Content[i+1], &raw); err != nil {
			return nil, errors.Wrapf(err, "domain %q", domain)
		}
		entries = append(entries, namedRawConfig{domain, raw})
	}
	return entries, nil
}

// decodeYAMLStrict decodes node into v rejecting unknown fields, which
// yaml.Node.Decode does not do on its own.
func decodeYAMLStrict(node *yaml.Node, v interface{}) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(node); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	dec := yaml.NewDecoder(&buf)
	dec.KnownFields(true)
	return dec.Decode(v)
}

func (raw rawDomainConfig) validate(domain string, providers map[string]ProviderFactory) (DomainConfig, []string) {
	var problems []string
	dc := DomainConfig{
		Domain:   strings.TrimSuffix(strings.TrimSpace(domain), "."),
		Provider: raw.Provider,
		TTL:      defaultTTL,
		ISPMap:   raw.ISPMap,
		Env:      raw.Env,
	}

	if dc.Domain == "" {
		problems = append(problems, "empty domain name")
	}
	if raw.Provider == "" {
		problems = append(problems, "provider is required")
	} else if _, ok := providers[raw.Provider]; !ok {
		problems = append(problems, fmt.Sprintf("unsupported provider %q (supported: %s)",
			raw.Provider, strings.Join(sortedKeys(providers), ", ")))
	}

	if len(raw.Names) == 0 {
		problems = append(problems, "names must list at least one subdomain")
	}
	seen := make(map[string]bool)
	for i, name := range raw.Names {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("names[%d] is empty", i))
		case seen[name]:
			problems = append(problems, fmt.Sprintf("names[%d] %q is duplicated", i, name))
		default:
			seen[name] = true
			dc.Names = append(dc.Names, name)
		}
	}

	if raw.MaxRecords != nil {
		if *raw.MaxRecords < 1 {
			problems = append(problems, fmt.Sprintf("maxRecords must be at least 1, got %d", *raw.MaxRecords))
		}
		dc.MaxRecords = *raw.MaxRecords
	}
	if raw.TTL != nil {
		if *raw.TTL < 1 {
			problems = append(problems, fmt.Sprintf("ttl must be at least 1, got %d", *raw.TTL))
		}
		dc.TTL = *raw.TTL
	}
	if raw.RemoveUnknownLineRecord != nil {
		dc.RemoveUnknownLineRecord = *raw.RemoveUnknownLineRecord
	}
	for k, v := range raw.ISPMap {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			problems = append(problems, fmt.Sprintf("ispMap entry %q: %q has an empty side", k, v))
		}
	}
	return dc, problems
}

// ResolveEnv merges the process environment with a domain's overrides. The
// overrides win and may reference process variables as ${NAME}.
func ResolveEnv(environ []string, overrides map[string]string) map[string]string {
	env := make(map[string]string, len(environ)+len(overrides))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	base := make(map[string]string, len(env))
	for k, v := range env {
		base[k] = v
	}
	for k, v := range overrides {
		env[k] = os.Expand(v, func(name string) string { return base[name] })
	}
	return env
}
