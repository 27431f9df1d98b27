package deployns

import (
	"sort"

	"github.com/go-logr/logr"
)

// ProviderFactory builds a binding from the resolved environment of a domain.
type ProviderFactory func(env map[string]string, log logr.Logger) (DNSProvider, error)

// Providers is the fixed table of supported provider keys.
var Providers = map[string]ProviderFactory{
	"tencent-cloud": NewTencentCloudProvider,
	"huawei-cloud":  NewHuaweiCloudProvider,
	"cloudflare":    NewCloudflareProvider,
	"google-cloud":  NewGoogleProvider,
	"rfc2136":       NewRfc2136Provider,
}

// ProviderKeys returns the supported provider keys, sorted.
func ProviderKeys() []string {
	return sortedKeys(Providers)
}

func sortedKeys(m map[string]ProviderFactory) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
