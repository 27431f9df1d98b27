package deployns

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Version is set by the main package at link time.
var Version = "dev"

var errDeployFailed = errors.New("one or more domains failed to deploy")

type cliOptions struct {
	configPath string
	dryRun     bool
	verbose    int
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	o := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "deploy-owo-ns",
		Short: "Deploy the best CDN edge IPs per ISP line to GeoDNS providers",
		Long: `deploy-owo-ns reads the current best CDN IPs for every ISP line from the
feed at $CDN_INFO_URL and replaces the A/AAAA records of the configured
subdomains with them, domain by domain.

Supported providers: ` + fmt.Sprint(ProviderKeys()),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, o)
		},
	}
	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "Config path (default $"+ConfigPathEnv+" or "+defaultConfigPath+")")
	cmd.PersistentFlags().IntVarP(&o.verbose, "verbose", "v", 0, "Log verbosity")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Show planned changes without applying them")

	cmd.AddCommand(newFeedCommand())
	cmd.AddCommand(newRecordsCommand(o))
	cmd.AddCommand(newProvidersCommand())
	return cmd
}

func runDeploy(cmd *cobra.Command, o *cliOptions) error {
	out := cmd.OutOrStdout()
	log := NewLogger(cmd.ErrOrStderr(), o.verbose)

	cfg, err := LoadConfig(ConfigPath(o.configPath), Providers)
	if err != nil {
		return err
	}
	if len(cfg.Domains) == 0 {
		log.Info("no domains configured", "path", cfg.Path)
	}

	candidates, err := fetchCandidates(cmd.Context())
	if err != nil {
		return err
	}
	printCandidates(out, candidates)

	d := &Deployer{
		Config:    cfg,
		Providers: Providers,
		Environ:   os.Environ(),
		Log:       log,
		Out:       out,
		DryRun:    o.dryRun,
	}
	report := d.Run(cmd.Context(), candidates)
	fmt.Fprintln(out)
	printReport(out, report)
	if report.Failed() {
		return errDeployFailed
	}
	return nil
}

func fetchCandidates(ctx context.Context) ([]LineCandidates, error) {
	feed := &Feed{URL: os.Getenv(FeedURLEnv), UserAgent: feedUserAgent(Version)}
	return feed.Fetch(ctx)
}

func newFeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Print the current CDN candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := fetchCandidates(cmd.Context())
			if err != nil {
				return err
			}
			printCandidates(cmd.OutOrStdout(), candidates)
			return nil
		},
	}
}

func newRecordsCommand(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "records [domain...]",
		Aliases: []string{"list", "l"},
		Short:   "Print the A/AAAA records of the configured subdomains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(ConfigPath(o.configPath), Providers)
			if err != nil {
				return err
			}
			log := NewLogger(cmd.ErrOrStderr(), o.verbose)
			return listRecords(cmd.Context(), cmd, cfg, args, log)
		},
	}
}

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported DNS providers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range ProviderKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}

func listRecords(ctx context.Context, cmd *cobra.Command, cfg *Config, domains []string, log logr.Logger) error {
	want := make(map[string]bool)
	for _, d := range domains {
		want[defqdn(d)] = true
	}
	for _, dc := range cfg.Domains {
		delete(want, dc.Domain)
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for d := range want {
			missing = append(missing, strconv.Quote(d))
		}
		sort.Strings(missing)
		if len(missing) == 1 {
			return errors.Errorf("domain %s is not configured", missing[0])
		}
		return errors.Errorf("domains %s are not configured", strings.Join(missing, ", "))
	}

	d := &Deployer{Config: cfg, Providers: Providers, Environ: os.Environ(), Log: log}
	var failed error
	for _, dc := range cfg.Domains {
		if len(domains) > 0 && !containsDomain(domains, dc.Domain) {
			continue
		}
		dlog := log.WithValues("domain", dc.Domain, "provider", dc.Provider)
		provider, err := d.newProvider(dc, dlog)
		if err != nil {
			dlog.Error(err, "create provider")
			failed = err
			continue
		}
		plan, err := (&Reconciler{Provider: provider, Log: dlog}).Plan(ctx, dc, nil)
		if err != nil {
			dlog.Error(err, "list records")
			failed = err
			continue
		}
		printRecords(cmd.OutOrStdout(), dc.Domain, plan.Discovered)
	}
	return failed
}

func containsDomain(domains []string, domain string) bool {
	for _, d := range domains {
		if defqdn(d) == domain {
			return true
		}
	}
	return false
}
