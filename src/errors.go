package deployns

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid deployment configuration. Nothing has
// touched the network when it is returned.
type ConfigError struct {
	Path     string
	Domain   string
	Problems []string
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Domain != "" {
		fmt.Fprintf(&b, ": domain %q", e.Domain)
	}
	if len(e.Problems) > 0 {
		b.WriteString(": " + strings.Join(e.Problems, "; "))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) Cause() error  { return e.Err }

// FeedError reports that the CDN candidate feed could not be used.
type FeedError struct {
	URL string
	Err error
}

func (e *FeedError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("feed: %s", e.Err)
	}
	return fmt.Sprintf("feed %s: %s", e.URL, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }
func (e *FeedError) Cause() error  { return e.Err }

// ProviderQueryError reports a failed read against a provider.
type ProviderQueryError struct {
	Provider string
	Domain   string
	Err      error
}

func (e *ProviderQueryError) Error() string {
	return fmt.Sprintf("%s: query %s: %s", e.Provider, e.Domain, e.Err)
}

func (e *ProviderQueryError) Unwrap() error { return e.Err }
func (e *ProviderQueryError) Cause() error  { return e.Err }

// ProviderWriteError reports a failed create or delete. JobID is set when the
// provider ran the change as a background job.
type ProviderWriteError struct {
	Provider string
	Domain   string
	JobID    string
	Err      error
}

func (e *ProviderWriteError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s: write %s (job %s): %s", e.Provider, e.Domain, e.JobID, e.Err)
	}
	return fmt.Sprintf("%s: write %s: %s", e.Provider, e.Domain, e.Err)
}

func (e *ProviderWriteError) Unwrap() error { return e.Err }
func (e *ProviderWriteError) Cause() error  { return e.Err }

// Deployment phases reported in DomainError.
const (
	PhaseProvider = "provider"
	PhaseDiscover = "discover"
	PhaseRemove   = "remove"
	PhaseAdd      = "add"
)

// DomainError attaches the domain, provider and phase to a failure that
// aborted one domain's deployment.
type DomainError struct {
	Domain   string
	Provider string
	Phase    string
	Err      error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("deploy %s via %s failed during %s: %s", e.Domain, e.Provider, e.Phase, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }
func (e *DomainError) Cause() error  { return e.Err }
