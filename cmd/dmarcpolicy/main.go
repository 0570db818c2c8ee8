// Command dmarcpolicy resolves the DMARC policy that applies to mail domains.
//
// Usage:
//
//	dmarcpolicy [-config file] [-v] lookup <domain>...
//	dmarcpolicy [-config file] [-v] serve
//
// lookup prints one "domain: policy" line per domain and exits with status 1
// if any lookup failed. serve runs the HTTP API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/synqronlabs/dmarcpolicy/config"
	"github.com/synqronlabs/dmarcpolicy/dmarc"
	"github.com/synqronlabs/dmarcpolicy/dns"
	"github.com/synqronlabs/dmarcpolicy/metrics"
	"github.com/synqronlabs/dmarcpolicy/publicsuffix"
	"github.com/synqronlabs/dmarcpolicy/server"
)

// Cache file names inside the configured cache directory.
const (
	suffixListFile = "public_suffix_list.dat"
	dnsCacheFile   = "dns_txt_cache.msgp"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dmarcpolicy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML config `file`")
	verbose := fs.Bool("v", false, "log at debug level")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: dmarcpolicy [-config file] [-v] lookup <domain>...")
		fmt.Fprintln(stderr, "       dmarcpolicy [-config file] [-v] serve")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "dmarcpolicy:", err)
		return exitError
	}
	level := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "lookup":
		if len(rest) == 0 {
			fs.Usage()
			return exitUsage
		}
		return lookup(ctx, cfg, logger, rest, stdout)
	case "serve":
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("serve failed", slog.Any("error", err))
			return exitError
		}
		return exitOK
	default:
		fmt.Fprintf(stderr, "dmarcpolicy: unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}
}

// env is what both commands need: rules, a resolver and the means to persist
// the resolver's cache.
type env struct {
	loader *publicsuffix.Loader
	rules  *publicsuffix.RuleSet
	res    dns.Resolver
	cache  *dns.CachingResolver // nil if caching is disabled
}

func setup(ctx context.Context, cfg config.Config, logger *slog.Logger) (*env, error) {
	if err := cfg.EnsureCacheDir(); err != nil {
		return nil, err
	}

	e := &env{
		loader: &publicsuffix.Loader{
			URL:    cfg.PublicSuffix.URL,
			Path:   cfg.Path(suffixListFile),
			MaxAge: cfg.PublicSuffix.MaxAge,
			Logger: logger,
		},
	}
	rules, err := e.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	e.rules = rules
	logger.Debug("public suffix list loaded", slog.Int("rules", rules.Len()))

	switch {
	case cfg.DNS.UseStdlib && len(cfg.DNS.Nameservers) > 0:
		e.res = dns.NewStdResolverWithDialer(dns.NameserverDialer(cfg.DNS.Nameservers, cfg.DNS.Timeout))
	case cfg.DNS.UseStdlib:
		e.res = dns.NewStdResolver()
	default:
		retries := cfg.DNS.Retries
		if retries == 0 {
			retries = -1
		}
		e.res = dns.NewResolver(dns.ResolverConfig{
			Nameservers: cfg.DNS.Nameservers,
			DNSSEC:      cfg.DNS.DNSSEC,
			Timeout:     cfg.DNS.Timeout,
			Retries:     retries,
			Logger:      logger,
		})
	}

	if cfg.DNS.CacheMaxAge > 0 {
		e.cache = dns.NewCachingResolver(e.res, dns.CacheConfig{
			MaxAge: cfg.DNS.CacheMaxAge,
			Path:   cfg.Path(dnsCacheFile),
			Logger: logger,
		})
		if err := e.cache.Load(); err != nil {
			logger.Warn("ignoring unreadable DNS cache", slog.Any("error", err))
		}
		e.res = e.cache
	}
	return e, nil
}

func (e *env) close(logger *slog.Logger) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Save(); err != nil {
		logger.Warn("saving DNS cache failed", slog.Any("error", err))
	}
}

func lookup(ctx context.Context, cfg config.Config, logger *slog.Logger, domains []string, stdout io.Writer) int {
	e, err := setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", slog.Any("error", err))
		return exitError
	}
	defer e.close(logger)

	code := exitOK
	for _, domain := range domains {
		res, err := dmarc.Resolve(ctx, e.res, e.rules, domain)
		if err != nil {
			fmt.Fprintf(stdout, "%s: error: %v\n", domain, err)
			code = exitError
			continue
		}
		fmt.Fprintf(stdout, "%s: %s\n", domain, res.Policy)
		logger.Debug("resolved",
			slog.String("domain", res.Domain),
			slog.Bool("found", res.Found),
			slog.String("record_domain", res.RecordDomain))
	}
	return code
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	e, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.close(logger)

	store := publicsuffix.NewStore(e.rules)
	collector := metrics.NewCollector()
	collector.WatchRules(store)
	if e.cache != nil {
		collector.WatchCache(e.cache)
	}

	go store.Run(ctx, e.loader, cfg.PublicSuffix.RefreshInterval, logger)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		Resolver:        e.res,
		Rules:           store,
		Metrics:         collector,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
