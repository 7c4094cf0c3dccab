package notifications

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// blockedCIDRs are private and reserved ranges webhook requests must not reach.
var blockedCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var parsedBlockedNets = mustParseCIDRs(blockedCIDRs)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid blocked CIDR %q: %v", cidr, err))
		}
		nets = append(nets, ipNet)
	}
	return nets
}

// ValidateWebhookURL checks the shape of a webhook URL. When requireHTTPS is
// true, plain HTTP is rejected. Address checks happen at dial time.
func ValidateWebhookURL(urlStr string, requireHTTPS bool) error {
	if strings.TrimSpace(urlStr) == "" {
		return fmt.Errorf("webhook URL is required")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if requireHTTPS {
			return fmt.Errorf("webhook URL must use HTTPS")
		}
	default:
		return fmt.Errorf("webhook URL must use HTTP or HTTPS scheme")
	}

	if parsed.Hostname() == "" {
		return fmt.Errorf("webhook URL must have a host")
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	for _, blocked := range parsedBlockedNets {
		if blocked.Contains(ip) {
			return true
		}
	}
	return ip.IsUnspecified()
}

// ValidatingDialer resolves the target host at connection time and only
// connects to addresses outside the blocked ranges.
func ValidatingDialer() func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("resolve host %q: %w", host, err)
		}

		for _, ipAddr := range ips {
			if isBlockedIP(ipAddr.IP) {
				continue
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
		}
		return nil, fmt.Errorf("all resolved addresses for %q are blocked", host)
	}
}
