package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"

	"github.com/sirupsen/logrus"
)

var (
	nmapHostLine = regexp.MustCompile(`^Nmap scan report for (?:\S+ \(([^)]+)\)|(\S+))`)
	nmapPortLine = regexp.MustCompile(`^(\d+)/tcp\s+(open\|filtered|open)(?:\s|$)`)
)

// ParseNmapReport reads nmap "normal" output (-oN) and returns the scanned
// address and its open or open|filtered TCP ports in ascending order. Only the
// first host block is read.
func ParseNmapReport(r io.Reader) (string, []int, error) {
	var (
		host  string
		ports []int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if m := nmapHostLine.FindStringSubmatch(line); m != nil {
			if host != "" {
				break
			}
			host = m[1]
			if host == "" {
				host = m[2]
			}
			continue
		}
		if host == "" {
			continue
		}
		if m := nmapPortLine.FindStringSubmatch(line); m != nil {
			port, err := strconv.Atoi(m[1])
			if err != nil || port < 1 || port > 65535 {
				continue
			}
			ports = append(ports, port)
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, fmt.Errorf("reading nmap report: %w", err)
	}
	if host == "" {
		return "", nil, errors.New("no \"Nmap scan report for\" line found")
	}
	slices.Sort(ports)
	return host, slices.Compact(ports), nil
}

// NmapReport discovers ports from a saved nmap report file.
type NmapReport struct {
	Path string
}

func (n NmapReport) Discover(_ context.Context, host string) ([]int, error) {
	f, err := os.Open(n.Path)
	if err != nil {
		return nil, &DiscoveryFailure{Host: host, Err: err}
	}
	defer f.Close()

	reported, ports, err := ParseNmapReport(f)
	if err != nil {
		return nil, &DiscoveryFailure{Host: host, Err: fmt.Errorf("%s: %w", n.Path, err)}
	}
	if host != "" && reported != host {
		logrus.Warnf("nmap report %s describes %s, not %s", n.Path, reported, host)
	}
	return ports, nil
}
