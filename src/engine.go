package deployns

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

var managedTypes = []string{TypeA, TypeAAAA}

// Plan is the outcome of comparing one domain's remote records against the
// feed. Lines in Discovered, Remove and Add are canonical.
type Plan struct {
	Domain     string
	Discovered []RemoteRecord
	Remove     []RemoteRecord
	Add        []DNSRecord

	lines LineMap
}

// RemoveIDs returns the distinct ids of the records to remove.
func (p *Plan) RemoveIDs() []string {
	ids := make([]string, 0, len(p.Remove))
	for _, r := range p.Remove {
		ids = append(ids, r.ID)
	}
	return dedupIDs(ids)
}

// ProviderRecords returns Add with lines translated for the provider.
func (p *Plan) ProviderRecords() []DNSRecord {
	result := make([]DNSRecord, 0, len(p.Add))
	for _, r := range p.Add {
		r.Line = p.lines.ToProvider(r.Line)
		result = append(result, r)
	}
	return result
}

// Reconciler converges one provider's records with the feed.
type Reconciler struct {
	Provider DNSProvider
	Log      logr.Logger
}

// Plan discovers the existing A and AAAA records of every configured name,
// selects those to remove and builds the desired record set. It does not
// write anything.
func (r *Reconciler) Plan(ctx context.Context, cfg DomainConfig, candidates []LineCandidates) (*Plan, error) {
	plan := &Plan{
		Domain: cfg.Domain,
		lines:  effectiveLineMap(r.Provider, cfg.ISPMap),
	}

	for _, name := range cfg.Names {
		for _, recordType := range managedTypes {
			records, err := r.Provider.GetRecords(ctx, cfg.Domain, RecordQuery{Type: recordType, Name: name})
			if err != nil {
				return nil, r.domainError(cfg.Domain, PhaseDiscover, asQueryError(r.Provider, cfg.Domain, err))
			}
			for _, rec := range records {
				// Providers may answer with a superset of the query.
				if rec.Name != name || rec.Type != recordType {
					continue
				}
				rec.Line = plan.lines.FromProvider(rec.Line)
				plan.Discovered = append(plan.Discovered, rec)
			}
		}
	}

	plan.Remove = FilterRemovals(plan.Discovered, cfg.RemoveUnknownLineRecord)
	plan.Add = BuildDesired(cfg.Names, candidates, cfg.MaxRecords, cfg.TTL)

	r.Log.Info("planned", "domain", cfg.Domain,
		"discovered", len(plan.Discovered), "remove", len(plan.Remove), "add", len(plan.Add))
	return plan, nil
}

// Apply removes the stale records and then creates the desired ones. Creation
// does not start unless removal finished successfully.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan) error {
	if ids := plan.RemoveIDs(); len(ids) > 0 {
		r.Log.Info("removing records", "domain", plan.Domain, "count", len(ids))
		if err := r.Provider.RemoveRecords(ctx, plan.Domain, ids); err != nil {
			return r.domainError(plan.Domain, PhaseRemove, asWriteError(r.Provider, plan.Domain, err))
		}
	}

	r.Log.Info("adding records", "domain", plan.Domain, "count", len(plan.Add))
	if err := r.Provider.AddRecords(ctx, plan.Domain, plan.ProviderRecords()); err != nil {
		return r.domainError(plan.Domain, PhaseAdd, asWriteError(r.Provider, plan.Domain, err))
	}
	return nil
}

// Reconcile plans and applies in one go.
func (r *Reconciler) Reconcile(ctx context.Context, cfg DomainConfig, candidates []LineCandidates) (*Plan, error) {
	plan, err := r.Plan(ctx, cfg, candidates)
	if err != nil {
		return nil, err
	}
	return plan, r.Apply(ctx, plan)
}

func (r *Reconciler) domainError(domain, phase string, err error) error {
	return &DomainError{Domain: domain, Provider: r.Provider.Name(), Phase: phase, Err: err}
}

// FilterRemovals returns the records eligible for removal. Unless
// removeUnknown is set, records on lines outside the known ISP set belong to
// someone else and are kept.
func FilterRemovals(records []RemoteRecord, removeUnknown bool) []RemoteRecord {
	result := make([]RemoteRecord, 0, len(records))
	for _, r := range records {
		if !removeUnknown && !IsKnownLine(r.Line) {
			continue
		}
		result = append(result, r)
	}
	return result
}

// BuildDesired turns feed candidates into records for every name. At most
// maxRecords addresses per line and address family are taken, in feed order;
// maxRecords <= 0 takes them all.
func BuildDesired(names []string, candidates []LineCandidates, maxRecords, ttl int) []DNSRecord {
	result := make([]DNSRecord, 0)
	for _, name := range names {
		for _, lc := range candidates {
			result = appendCandidates(result, name, TypeA, lc.Line, lc.V4, maxRecords, ttl)
			result = appendCandidates(result, name, TypeAAAA, lc.Line, lc.V6, maxRecords, ttl)
		}
	}
	return result
}

func appendCandidates(dst []DNSRecord, name, recordType, line string, addrs []CandidateAddress, maxRecords, ttl int) []DNSRecord {
	for i, a := range addrs {
		if maxRecords > 0 && i >= maxRecords {
			break
		}
		dst = append(dst, DNSRecord{Name: name, Type: recordType, Value: a.Address, Line: line, TTL: ttl})
	}
	return dst
}

func asQueryError(p DNSProvider, domain string, err error) error {
	var qe *ProviderQueryError
	if errors.As(err, &qe) {
		return err
	}
	return &ProviderQueryError{Provider: p.Name(), Domain: domain, Err: err}
}

func asWriteError(p DNSProvider, domain string, err error) error {
	var we *ProviderWriteError
	if errors.As(err, &we) {
		return err
	}
	return &ProviderWriteError{Provider: p.Name(), Domain: domain, Err: err}
}
