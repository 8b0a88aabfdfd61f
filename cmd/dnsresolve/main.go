// Command dnsresolve is the stub-resolver client's CLI entry point: it
// resolves one name against a configured or discovered nameserver list,
// optionally keeping a warm process around with a Prometheus /metrics
// endpoint and a management gRPC server, grounded on the teacher's
// cmd/dnsscienced flag-parsing/signal-handling/stats-printer conventions
// (see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dnsscience/stubresolver/api/rpc"
	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/metrics"
	"github.com/dnsscience/stubresolver/internal/rcache"
	"github.com/dnsscience/stubresolver/internal/wire"
	"github.com/dnsscience/stubresolver/resolvconf"
	"github.com/dnsscience/stubresolver/resolver"
	"github.com/dnsscience/stubresolver/transport"
)

var (
	qname        = flag.String("name", "", "Name to resolve (required unless -serve)")
	rdtypeFlag   = flag.String("type", "A", "Record type: A, AAAA, CNAME, MX, NS, PTR, SRV, TXT")
	server       = flag.String("server", "", "Nameserver IP address to query on port 53 (repeatable via comma)")
	resolvConf   = flag.String("resolv-conf", "", "Read nameservers/search/options from this resolv.conf-style file")
	tcp          = flag.Bool("tcp", false, "Force TCP instead of UDP")
	rotate       = flag.Bool("rotate", false, "Rotate through nameservers round-robin")
	edns0        = flag.Bool("edns0", true, "Attach an EDNS(0) OPT record")
	ndots        = flag.Int("ndots", 1, "Threshold for trying the bare name before the search list")
	timeout      = flag.Duration("timeout", 3*time.Second, "Per-nameserver-attempt timeout")
	lifetime     = flag.Duration("lifetime", 10*time.Second, "Total budget for one resolve")
	lruSize      = flag.Int("cache-lru", 0, "Use an LRU cache with this many entries (0 uses the unbounded simple cache)")
	metricsAddr  = flag.String("metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9153)")
	serve        = flag.Bool("serve", false, "Stay resident and serve -metrics-addr/-rpc-addr instead of a one-shot resolve")
	rpcAddr      = flag.String("rpc-addr", "", "If set (with -serve), run the management gRPC server on this address")
	rpcCert      = flag.String("rpc-cert", "", "TLS certificate for -rpc-addr")
	rpcKey       = flag.String("rpc-key", "", "TLS key for -rpc-addr")
	statsPrinter = flag.Bool("stats", true, "Copy cache statistics into the Prometheus collectors every 30s when -serve")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	opts := resolver.Options{
		Ndots:           *ndots,
		EDNS:            *edns0,
		PayloadSize:     1232,
		Timeout:         *timeout,
		Lifetime:        *lifetime,
		Rotate:          *rotate,
		ForceTCP:        *tcp,
		RaiseOnNoAnswer: true,
		Transport:       &transport.Dialer{},
		Logger:          logger,
	}

	if *lruSize > 0 {
		opts.Cache = rcache.NewLRU(*lruSize)
	} else {
		opts.Cache = rcache.NewSimple(300 * time.Second)
	}

	if err := configureNameservers(&opts); err != nil {
		fmt.Fprintln(os.Stderr, "dnsresolve:", err)
		os.Exit(2)
	}

	res, err := resolver.New(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dnsresolve:", err)
		os.Exit(2)
	}

	if *serve {
		runServer(res)
		return
	}

	if *qname == "" {
		fmt.Fprintln(os.Stderr, "dnsresolve: -name is required unless -serve")
		os.Exit(2)
	}

	name, err := dnsname.FromText(*qname, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dnsresolve: parsing name:", err)
		os.Exit(2)
	}
	rdtype, err := parseType(*rdtypeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dnsresolve:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *lifetime+time.Second)
	defer cancel()

	start := time.Now()
	answer, err := res.Resolve(ctx, name, rdtype, wire.ClassINET)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveResolve(outcomeFor(err), elapsed)
		fmt.Fprintln(os.Stderr, "dnsresolve:", err)
		os.Exit(1)
	}
	metrics.ObserveResolve("answer", elapsed)

	fmt.Printf(";; ANSWER for %s %s (%s)\n", name, rdtype, elapsed)
	for _, rr := range answer.RRset {
		fmt.Printf("%s\t%d\tIN\t%s\t%s\n", rr.Name, rr.TTL, rr.Type, formatRData(rr))
	}
	if len(answer.RRset) == 0 {
		fmt.Println(";; no data")
	}
}

// formatRData renders an RR's rdata in the same presentation form its type
// has in a zone file, falling back to hex for types this CLI has no
// printer for.
func formatRData(rr wire.RR) string {
	switch rr.Type {
	case wire.TypeA:
		if ip, err := rr.A(); err == nil {
			return ip.String()
		}
	case wire.TypeAAAA:
		if ip, err := rr.AAAA(); err == nil {
			return ip.String()
		}
	case wire.TypeCNAME, wire.TypeNS, wire.TypePTR:
		if n, err := rr.NameRData(); err == nil {
			return n.String()
		}
	case wire.TypeMX:
		if mx, err := rr.MX(); err == nil {
			return fmt.Sprintf("%d %s", mx.Preference, mx.Exchange)
		}
	case wire.TypeSRV:
		if srv, err := rr.SRV(); err == nil {
			return fmt.Sprintf("%d %d %d %s", srv.Priority, srv.Weight, srv.Port, srv.Target)
		}
	case wire.TypeTXT:
		if txt, err := rr.TXT(); err == nil {
			return strings.Join(txt, " ")
		}
	}
	return fmt.Sprintf("\\# %d %x", len(rr.RData), rr.RData)
}

func configureNameservers(opts *resolver.Options) error {
	if *resolvConf != "" {
		f, err := os.Open(*resolvConf)
		if err != nil {
			return fmt.Errorf("opening resolv-conf: %w", err)
		}
		defer f.Close()
		cfg, err := resolvconf.Parse(f)
		if err != nil {
			return fmt.Errorf("parsing resolv-conf: %w", err)
		}
		opts.Nameservers = cfg.NameserverList()
		opts.Search = cfg.Search
		if cfg.Ndots > 0 {
			opts.Ndots = cfg.Ndots
		}
		opts.Rotate = opts.Rotate || cfg.Rotate
		opts.EDNS = opts.EDNS || cfg.UseEDNS
	}

	if *server != "" {
		var list []transport.Nameserver
		for _, s := range strings.Split(*server, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			list = append(list, transport.Nameserver{Addr: s, Port: 53, Kind: transport.KindDo53})
		}
		opts.Nameservers = list
	}

	if len(opts.Nameservers) == 0 {
		return resolver.ErrConfigError
	}
	return nil
}

var typesByName = map[string]wire.Type{
	"A": wire.TypeA, "AAAA": wire.TypeAAAA, "CNAME": wire.TypeCNAME,
	"MX": wire.TypeMX, "NS": wire.TypeNS, "PTR": wire.TypePTR,
	"SRV": wire.TypeSRV, "TXT": wire.TypeTXT, "SOA": wire.TypeSOA,
}

func parseType(s string) (wire.Type, error) {
	t, ok := typesByName[strings.ToUpper(s)]
	if !ok {
		return 0, fmt.Errorf("unknown record type %q", s)
	}
	return t, nil
}

func outcomeFor(err error) string {
	switch err.(type) {
	case *resolver.NXDOMAIN:
		return "nxdomain"
	case *resolver.NoAnswer:
		return "no_answer"
	case *resolver.NoNameservers:
		return "no_nameservers"
	case *resolver.LifetimeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// runServer keeps the resolver resident, exposing Prometheus metrics and an
// optional gRPC management surface (health + reflection; the hot
// Resolve/Xfr/LoadZone path runs in-process, not over RPC — see DESIGN.md),
// matching the teacher's daemon-with-stats-printer shape.
func runServer(res *resolver.Resolver) {
	var hs *health.Server

	if *rpcAddr != "" {
		gs, h, ln, err := rpc.New(rpc.Config{
			ListenAddr:  *rpcAddr,
			TLSCertFile: *rpcCert,
			TLSKeyFile:  *rpcKey,
		}, rpc.Deps{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "dnsresolve: starting rpc server:", err)
			os.Exit(1)
		}
		hs = h
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		go func() {
			if err := gs.Serve(ln); err != nil {
				fmt.Fprintln(os.Stderr, "dnsresolve: rpc server:", err)
			}
		}()
		defer gs.GracefulStop()
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintln(os.Stderr, "dnsresolve: metrics server:", err)
			}
		}()
		defer srv.Close()
	}

	if *statsPrinter {
		go printStats(res)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if hs != nil {
		hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func printStats(res *resolver.Resolver) {
	cache := res.Cache()
	if cache == nil {
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		metrics.SyncCacheStats(cache)
	}
}
