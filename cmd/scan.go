package cmd

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/wavegen/wavegen/load/discovery"
)

// scanOptions selects how open ports are found.
type scanOptions struct {
	ports       string
	timeout     time.Duration
	concurrency int
	report      string
	cache       string
	cacheAge    time.Duration
}

func (o *scanOptions) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ports, "scan-ports", "1-1024", "Port range probed by the connect scanner")
	fs.DurationVar(&o.timeout, "scan-timeout", discovery.DefaultScanTimeout, "Per-port connect timeout while scanning")
	fs.IntVar(&o.concurrency, "scan-concurrency", discovery.DefaultScanConcurrency, "Ports probed in parallel while scanning")
	fs.StringVar(&o.report, "scan-report", "", "Read open ports from an nmap -oN report instead of scanning")
	fs.StringVar(&o.cache, "scan-cache", "", "YAML file caching the last scan result")
	fs.DurationVar(&o.cacheAge, "scan-cache-age", 0, "Maximum age of a reused scan (0 = no limit)")
}

// discoverer builds the configured Discoverer chain.
func (o *scanOptions) discoverer() (discovery.Discoverer, error) {
	var d discovery.Discoverer
	if o.report != "" {
		d = discovery.NmapReport{Path: o.report}
	} else {
		pr, err := discovery.ParsePortRange(o.ports)
		if err != nil {
			return nil, err
		}
		d = discovery.NewConnectScanner(pr, o.timeout, o.concurrency)
	}
	if o.cache != "" {
		d = discovery.NewCache(o.cache, d, o.cacheAge)
	}
	return d, nil
}
