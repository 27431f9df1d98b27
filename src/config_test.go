package deployns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactories() map[string]ProviderFactory {
	f := func(env map[string]string, log logr.Logger) (DNSProvider, error) {
		return newFakeProvider(), nil
	}
	return map[string]ProviderFactory{"fake": f, "other": f}
}

func TestParseConfigJSON(t *testing.T) {
	data := []byte(`{
		"z.example.com": {
			"provider": "fake",
			"names": ["cdn", "@"],
			"maxRecords": 2,
			"ttl": 300,
			"removeUnknownLineRecord": true,
			"ispMap": {"中国电信": "Dianxin"},
			"env": {"TOKEN": "abc"}
		},
		"a.example.com.": {
			"provider": "other",
			"names": ["www"]
		}
	}`)

	cfg, err := ParseConfig("deploy.json", data, testFactories())
	require.NoError(t, err)
	require.Len(t, cfg.Domains, 2)

	assert.Equal(t, DomainConfig{
		Domain:                  "z.example.com",
		Provider:                "fake",
		Names:                   []string{"cdn", "@"},
		MaxRecords:              2,
		TTL:                     300,
		RemoveUnknownLineRecord: true,
		ISPMap:                  map[string]string{"中国电信": "Dianxin"},
		Env:                     map[string]string{"TOKEN": "abc"},
	}, cfg.Domains[0])

	second := cfg.Domains[1]
	assert.Equal(t, "a.example.com", second.Domain)
	assert.Equal(t, defaultTTL, second.TTL)
	assert.Zero(t, second.MaxRecords)
	assert.False(t, second.RemoveUnknownLineRecord)
}

func TestParseConfigYAML(t *testing.T) {
	data := []byte(`
b.example.com:
  provider: fake
  names: [cdn]
  ttl: 120
a.example.com:
  provider: other
  names:
    - www
    - img
  ispMap:
    China Mobile: Yidong
`)
	cfg, err := ParseConfig("deploy.yaml", data, testFactories())
	require.NoError(t, err)
	require.Len(t, cfg.Domains, 2)

	assert.Equal(t, "b.example.com", cfg.Domains[0].Domain)
	assert.Equal(t, 120, cfg.Domains[0].TTL)
	assert.Equal(t, "a.example.com", cfg.Domains[1].Domain)
	assert.Equal(t, []string{"www", "img"}, cfg.Domains[1].Names)
	assert.Equal(t, map[string]string{"China Mobile": "Yidong"}, cfg.Domains[1].ISPMap)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		data    string
		problem string
	}{
		{"unknown provider", "c.json", `{"example.com": {"provider": "nope", "names": ["cdn"]}}`, `unsupported provider "nope"`},
		{"missing provider", "c.json", `{"example.com": {"names": ["cdn"]}}`, "provider is required"},
		{"no names", "c.json", `{"example.com": {"provider": "fake", "names": []}}`, "at least one subdomain"},
		{"empty name", "c.json", `{"example.com": {"provider": "fake", "names": [""]}}`, "names[0] is empty"},
		{"duplicate name", "c.json", `{"example.com": {"provider": "fake", "names": ["a", "a"]}}`, `names[1] "a" is duplicated`},
		{"zero maxRecords", "c.json", `{"example.com": {"provider": "fake", "names": ["a"], "maxRecords": 0}}`, "maxRecords must be at least 1"},
		{"negative ttl", "c.json", `{"example.com": {"provider": "fake", "names": ["a"], "ttl": -1}}`, "ttl must be at least 1"},
		{"empty isp map value", "c.json", `{"example.com": {"provider": "fake", "names": ["a"], "ispMap": {"电信": ""}}}`, "empty side"},
		{"unknown field", "c.json", `{"example.com": {"provider": "fake", "names": ["a"], "maxRecord": 2}}`, "maxRecord"},
		{"unknown yaml field", "c.yml", "example.com:\n  provider: fake\n  names: [a]\n  tll: 60\n", "tll"},
		{"not an object", "c.json", `["example.com"]`, "object keyed by domain"},
		{"duplicate domain", "c.json", `{"example.com": {"provider": "fake", "names": ["a"]}, "example.com": {"provider": "fake", "names": ["b"]}}`, "declared twice"},
		{"truncated", "c.json", `{"example.com": `, "unexpected EOF"},
		{"unclosed", "c.json", `{"example.com": {"provider": "fake", "names": ["a"]}`, "unexpected EOF"},
		{"truncated key", "c.json", `{"example.com": {"provider": "fake", "names": ["a"]}, `, "unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(tt.path, []byte(tt.data), testFactories())
			require.Error(t, err)
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestParseConfigCollectsProblems(t *testing.T) {
	_, err := ParseConfig("c.json", []byte(`{"example.com": {"provider": "nope", "names": [], "ttl": 0}}`), testFactories())
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "example.com", ce.Domain)
	assert.Len(t, ce.Problems, 3)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"example.com": {"provider": "fake", "names": ["cdn"]}}`), 0o600))

	cfg, err := LoadConfig(path, testFactories())
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Len(t, cfg.Domains, 1)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"), testFactories())
	var ce *ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestConfigPath(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	assert.Equal(t, defaultConfigPath, ConfigPath(""))

	t.Setenv(ConfigPathEnv, "/etc/deploy.yaml")
	assert.Equal(t, "/etc/deploy.yaml", ConfigPath(""))
	assert.Equal(t, "flag.json", ConfigPath("flag.json"))
}

func TestResolveEnv(t *testing.T) {
	environ := []string{"SECRET_ID=process", "SHARED=base", "BROKEN"}
	env := ResolveEnv(environ, map[string]string{
		"SECRET_ID": "domain",
		"DERIVED":   "${SHARED}-x",
	})

	assert.Equal(t, "domain", env["SECRET_ID"])
	assert.Equal(t, "base", env["SHARED"])
	assert.Equal(t, "base-x", env["DERIVED"])
	assert.NotContains(t, env, "BROKEN")
}
