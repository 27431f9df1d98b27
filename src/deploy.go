package deployns

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// DomainResult is the outcome of one domain's deployment.
type DomainResult struct {
	Domain     string
	Provider   string
	Discovered int
	Removed    int
	Added      int
	DryRun     bool
	Err        error
}

// Report collects every domain's result in configuration order.
type Report struct {
	Results []DomainResult
}

// Failed reports whether any domain failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Deployer runs the reconciliation for every configured domain, one after
// another. A failing domain does not stop the others.
type Deployer struct {
	Config    *Config
	Providers map[string]ProviderFactory
	Environ   []string
	Log       logr.Logger
	Out       io.Writer
	DryRun    bool
}

// Run deploys candidates to every domain and returns the per-domain results.
func (d *Deployer) Run(ctx context.Context, candidates []LineCandidates) *Report {
	report := &Report{}
	for _, dc := range d.Config.Domains {
		if ctx.Err() != nil {
			report.Results = append(report.Results, DomainResult{
				Domain: dc.Domain, Provider: dc.Provider, Err: ctx.Err(),
			})
			continue
		}
		res := d.deployDomain(ctx, dc, candidates)
		if res.Err != nil {
			log := d.Log.WithValues("domain", dc.Domain, "provider", dc.Provider)
			var de *DomainError
			if errors.As(res.Err, &de) {
				log = log.WithValues("phase", de.Phase)
			}
			var we *ProviderWriteError
			if errors.As(res.Err, &we) && we.JobID != "" {
				log = log.WithValues("jobID", we.JobID)
			}
			log.Error(res.Err, "domain deployment failed")
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func (d *Deployer) deployDomain(ctx context.Context, dc DomainConfig, candidates []LineCandidates) DomainResult {
	res := DomainResult{Domain: dc.Domain, Provider: dc.Provider, DryRun: d.DryRun}
	log := d.Log.WithValues("domain", dc.Domain, "provider", dc.Provider)

	provider, err := d.newProvider(dc, log)
	if err != nil {
		res.Err = &DomainError{Domain: dc.Domain, Provider: dc.Provider, Phase: PhaseProvider, Err: err}
		return res
	}
	if isLineless(provider) && !dc.RemoveUnknownLineRecord && !mapsToDefaultLine(dc.ISPMap) {
		log.Info("provider has no ISP lines; existing records will not be removed unless " +
			"removeUnknownLineRecord is set or ispMap maps a line to " + DefaultLine)
	}

	r := &Reconciler{Provider: provider, Log: log}
	plan, err := r.Plan(ctx, dc, candidates)
	if err != nil {
		res.Err = err
		return res
	}
	res.Discovered = len(plan.Discovered)

	fmt.Fprintf(d.Out, "\n%s (%s): %d discovered, %d to remove, %d to add\n",
		dc.Domain, provider.Name(), len(plan.Discovered), len(plan.Remove), len(plan.Add))
	printChanges(d.Out, plan)
	if d.DryRun {
		return res
	}

	if err := r.Apply(ctx, plan); err != nil {
		var de *DomainError
		if errors.As(err, &de) && de.Phase == PhaseAdd {
			res.Removed = len(plan.Remove)
		}
		res.Err = err
		return res
	}
	res.Removed = len(plan.Remove)
	res.Added = len(plan.Add)
	fmt.Fprintf(d.Out, "%s: removed %d, added %d\n", dc.Domain, res.Removed, res.Added)
	return res
}

func (d *Deployer) newProvider(dc DomainConfig, log logr.Logger) (DNSProvider, error) {
	factories := d.Providers
	if factories == nil {
		factories = Providers
	}
	factory, ok := factories[dc.Provider]
	if !ok {
		return nil, &ConfigError{Domain: dc.Domain, Problems: []string{fmt.Sprintf("unsupported provider %q", dc.Provider)}}
	}
	return factory(ResolveEnv(d.Environ, dc.Env), log)
}

func mapsToDefaultLine(ispMap map[string]string) bool {
	for _, v := range ispMap {
		if v == DefaultLine {
			return true
		}
	}
	return false
}
