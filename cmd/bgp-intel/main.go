package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sudorandom/bgp-intel/pkg/asnames"
	"github.com/sudorandom/bgp-intel/pkg/cache"
	"github.com/sudorandom/bgp-intel/pkg/cloudnets"
	"github.com/sudorandom/bgp-intel/pkg/geo"
	"github.com/sudorandom/bgp-intel/pkg/intel"
	"github.com/sudorandom/bgp-intel/pkg/ipgen"
	"github.com/sudorandom/bgp-intel/pkg/watch"
)

var cli struct {
	JSON       bool          `short:"j" help:"Emit reports as JSON instead of formatted text."`
	NoColor    bool          `help:"Disable ANSI colour output."`
	Timeout    time.Duration `default:"5s" help:"HTTP timeout per API request."`
	Delay      time.Duration `default:"1s" help:"Pause between consecutive API calls."`
	CacheDir   string        `help:"Directory for the on-disk enrichment cache (empty disables caching)." type:"path"`
	CacheTTL   time.Duration `default:"24h" help:"Lifetime of cached enrichment entries."`
	MMDB       string        `help:"MaxMind GeoLite2 database for offline country fallback." type:"path"`
	CloudFeeds string        `help:"Directory for cached cloud provider range feeds (empty disables the range check)." type:"path"`

	IP     ipCmd     `cmd:"" help:"Triage a single IP address."`
	ASN    asnCmd    `cmd:"" help:"Audit an autonomous system (by ASN or by one of its IPs)."`
	Path   pathCmd   `cmd:"" help:"Show the live AS path towards an IP."`
	Audit  auditCmd  `cmd:"" help:"Run a routing sovereignty audit on an IP, ASN or URL."`
	Origin originCmd `cmd:"" help:"Check announced origins against an expected baseline."`
	RPKI   rpkiCmd   `cmd:"" name:"rpki" help:"Validate RPKI state for prefix/ASN pairs."`
	Batch  batchCmd  `cmd:"" help:"Enrich a list of IPs from a file or stdin."`
	Gen    genCmd    `cmd:"" help:"Generate random IPs for testing enrichment pipelines."`
	Watch  watchCmd  `cmd:"" help:"Watch RIS Live for announcements of a prefix."`
}

// app carries the shared dependencies into command Run methods.
type app struct {
	enricher *intel.Enricher
	render   *renderer
	json     bool
	exitCode int
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	os.Exit(run())
}

// run carries the whole lifecycle so deferred cleanup (badger, mmdb) still
// happens on non-zero exits.
func run() int {
	kctx := kong.Parse(&cli,
		kong.Name("bgp-intel"),
		kong.Description("BGP and ASN intelligence toolkit for SOC triage and routing audits."),
		kong.UsageOnError(),
	)

	a := &app{
		enricher: intel.NewEnricher(),
		render:   newRenderer(os.Stdout, !cli.NoColor),
		json:     cli.JSON,
	}
	a.enricher.Delay = cli.Delay
	a.enricher.RIPEStat.HTTPClient.Timeout = cli.Timeout
	a.enricher.BGPView.HTTPClient.Timeout = cli.Timeout
	a.enricher.IPAPI.HTTPClient.Timeout = cli.Timeout
	a.enricher.URLClient.Timeout = cli.Timeout

	if cli.CacheDir != "" {
		store, err := cache.Open(cli.CacheDir, cli.CacheTTL)
		if err != nil {
			log.Printf("Failed to open cache at %s: %v", cli.CacheDir, err)
			return 1
		}
		defer store.Close()
		a.enricher.Cache = store
	}
	if cli.MMDB != "" {
		reader, err := geo.Open(cli.MMDB)
		if err != nil {
			log.Printf("Failed to open GeoIP database %s: %v", cli.MMDB, err)
			return 1
		}
		defer reader.Close()
		a.enricher.Geo = reader
	}
	if cli.CloudFeeds != "" {
		matcher, err := cloudnets.Load(cli.CloudFeeds)
		if err != nil {
			log.Printf("Failed to load cloud provider feeds: %v", err)
			return 1
		}
		a.enricher.CloudNets = matcher
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(a); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return a.exitCode
}

type ipCmd struct {
	Address string `arg:"" help:"IPv4 or IPv6 address to triage."`
	RDNS    bool   `help:"Also resolve the reverse DNS name."`
	Cymru   bool   `help:"Cross-check the origin via Team Cymru DNS."`
}

func (c *ipCmd) Run(ctx context.Context, a *app) error {
	report, err := a.enricher.TriageIP(ctx, c.Address, intel.TriageOptions{
		ReverseDNS:  c.RDNS,
		CymruOrigin: c.Cymru,
	})
	if err != nil {
		return err
	}
	if a.json {
		return a.render.JSON(report)
	}
	a.render.Triage(report)
	return nil
}

type asnCmd struct {
	Resource string `arg:"" help:"ASN (e.g. AS3333 or 3333) or an IP announced by it."`
}

func (c *asnCmd) Run(ctx context.Context, a *app) error {
	report, err := a.enricher.AuditASN(ctx, c.Resource)
	if err != nil {
		return err
	}
	if a.json {
		return a.render.JSON(report)
	}
	a.render.Audit(report)
	return nil
}

type pathCmd struct {
	Address string `arg:"" help:"IP address to trace."`
}

func (c *pathCmd) Run(ctx context.Context, a *app) error {
	report, err := a.enricher.FindPath(ctx, c.Address)
	if err != nil {
		return err
	}
	if a.json {
		return a.render.JSON(report)
	}
	a.render.Path(report)
	return nil
}

type auditCmd struct {
	Resource string `arg:"" optional:"" help:"IP, ASN or URL to audit. Reads the last line of stdin when omitted or '-'."`
	URL      bool   `help:"Treat the resource as a URL even without an http(s) scheme."`
}

func (c *auditCmd) Run(ctx context.Context, a *app) error {
	resource := strings.TrimSpace(c.Resource)
	if resource == "" || resource == "-" {
		var err error
		resource, err = lastStdinLine()
		if err != nil {
			return err
		}
	}
	asURL := c.URL || strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://")

	report, err := a.enricher.AuditSovereignty(ctx, resource, asURL)
	if err != nil {
		return err
	}
	if a.json {
		return a.render.JSON(report)
	}
	a.render.Sovereignty(report)
	return nil
}

// lastStdinLine supports piping a URL list where only the most recent entry
// matters, e.g. `tail -f urls.log | bgp-intel audit`.
func lastStdinLine() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	var last string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if last == "" {
		return "", errors.New("no resource given and stdin was empty")
	}
	return last, nil
}

type originCmd struct {
	Prefix   string `arg:"" optional:"" help:"Prefix to check (with --baseline, omit the positional pair)."`
	ASN      string `arg:"" optional:"" help:"Expected origin ASN."`
	Baseline string `help:"CSV baseline of prefix,asn pairs." type:"path"`
}

func (c *originCmd) Run(ctx context.Context, a *app) error {
	targets, err := c.targets()
	if err != nil {
		return err
	}
	var results []intel.OriginResult
	for _, t := range targets {
		results = append(results, a.enricher.CheckOrigin(ctx, t.Prefix, t.ASN))
	}
	for _, res := range results {
		if res.Status == intel.StatusAlert || res.Status == intel.StatusError {
			a.exitCode = 2
		}
	}
	if a.json {
		return a.render.JSON(results)
	}
	for _, res := range results {
		a.render.Origin(res)
	}
	return nil
}

func (c *originCmd) targets() ([]intel.Target, error) {
	if c.Baseline != "" {
		f, err := os.Open(c.Baseline)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return intel.ParseBaseline(f)
	}
	if c.Prefix == "" || c.ASN == "" {
		return nil, errors.New("either a prefix/ASN pair or --baseline is required")
	}
	if err := intel.ValidatePrefix(c.Prefix); err != nil {
		return nil, err
	}
	return []intel.Target{{Prefix: c.Prefix, ASN: intel.NormalizeASN(c.ASN)}}, nil
}

type rpkiCmd struct {
	Prefix   string `arg:"" optional:"" help:"Prefix to validate."`
	ASN      string `arg:"" optional:"" help:"Origin ASN to validate against."`
	Baseline string `help:"CSV baseline of prefix,asn pairs." type:"path"`
}

func (c *rpkiCmd) Run(ctx context.Context, a *app) error {
	targets, err := (&originCmd{Prefix: c.Prefix, ASN: c.ASN, Baseline: c.Baseline}).targets()
	if err != nil {
		return err
	}
	var results []intel.RPKIResult
	for _, t := range targets {
		results = append(results, a.enricher.CheckRPKI(ctx, t.Prefix, t.ASN))
	}
	for _, res := range results {
		if res.State == "invalid" || res.State == intel.StatusError {
			a.exitCode = 2
		}
	}
	if a.json {
		return a.render.JSON(results)
	}
	for _, res := range results {
		a.render.RPKI(res)
	}
	return nil
}

type batchCmd struct {
	File   string `help:"File of IPs, one per line. Reads stdin when omitted or '-'." type:"path"`
	Format string `default:"tsv" enum:"tsv,json,geojson" help:"Output format."`
}

func (c *batchCmd) Run(ctx context.Context, a *app) error {
	in := os.Stdin
	if c.File != "" && c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	ips, err := intel.ReadIPList(in)
	if err != nil {
		return err
	}
	rows := a.enricher.BatchReport(ctx, ips)

	format := c.Format
	if a.json {
		format = "json"
	}
	return writeBatch(os.Stdout, rows, format, a.enricher.Classifier)
}

func writeBatch(w io.Writer, rows []intel.BatchRow, format string, cls *intel.Classifier) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "geojson":
		fc := intel.BatchGeoJSON(rows, cls)
		raw, err := fc.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = w.Write(append(raw, '\n'))
		return err
	default:
		for _, row := range rows {
			if row.Status != "ok" {
				fmt.Fprintf(w, "%s\t%s\t%s\n", row.IP, row.Status, row.Error)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.IP, row.Country, row.ASN, row.Org)
		}
		return nil
	}
}

type genCmd struct {
	Count     int    `default:"10" help:"Number of addresses to generate."`
	Malicious bool   `help:"Draw from sample ranges in high-risk jurisdictions instead of the whole global unicast space."`
	Prefix    string `help:"Draw from a specific CIDR prefix."`
	Seed      int64  `help:"Deterministic RNG seed (0 uses the current time)."`
}

func (c *genCmd) Run() error {
	return c.generate(os.Stdout)
}

func (c *genCmd) generate(w io.Writer) error {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < c.Count; i++ {
		switch {
		case c.Prefix != "":
			addr, err := ipgen.RandomFromPrefix(rng, c.Prefix)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, addr)
		case c.Malicious:
			addr, err := ipgen.RandomSample(rng)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, addr)
		default:
			fmt.Fprintln(w, ipgen.RandomGlobalUnicast(rng))
		}
	}
	return nil
}

type watchCmd struct {
	Prefix   string        `arg:"" help:"Prefix to watch on RIS Live."`
	Expect   []int         `help:"Expected origin ASNs. Announcements from any other origin raise an alert."`
	Duration time.Duration `help:"Stop after this long (0 runs until interrupted)."`
	Report   time.Duration `default:"30s" help:"Interval between stats reports."`
	NamesDir string        `help:"Cache directory for the AS name dump; enables holder names in alerts." type:"path"`
}

func (c *watchCmd) Run(ctx context.Context, a *app) error {
	if err := intel.ValidatePrefix(c.Prefix); err != nil {
		return err
	}
	if watch.IsBeacon(c.Prefix) {
		log.Printf("NOTE: %s is a RIS routing beacon; scheduled announce/withdraw churn is expected.", c.Prefix)
	}
	if c.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Duration)
		defer cancel()
	}

	var names *asnames.Mapping
	if c.NamesDir != "" {
		var err error
		names, err = asnames.Load(c.NamesDir)
		if err != nil {
			log.Printf("AS names unavailable: %v", err)
		}
	}

	monitor := watch.NewMonitor(c.Prefix, c.Expect)
	monitor.OnAlert = func(alert watch.OriginAlert) {
		a.exitCode = 2
		log.Printf("[ALERT] %s announced by unexpected origin AS%d (%s) via peer %s (path %v)",
			alert.Prefix, alert.Origin, names.Name(alert.Origin), alert.Peer, alert.Path)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.Report)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := monitor.Snapshot()
				log.Printf("[STATS] msgs=%d announcements=%d withdrawals=%d peers=%d origins=%v alerts=%d",
					stats.TotalMessages, stats.Announcements, stats.Withdrawals,
					len(stats.Peers), stats.Origins, stats.Alerts)
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	err := monitor.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		stats := monitor.Snapshot()
		log.Printf("Watch finished after %v: %d messages, %d alerts",
			time.Since(stats.Started).Round(time.Second), stats.TotalMessages, stats.Alerts)
		if a.json {
			return a.render.JSON(stats)
		}
		return nil
	}
	return err
}
