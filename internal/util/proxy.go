package util

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// NewProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
// noProxy is a comma-separated list of hosts, domain suffixes (".example.org"
// or "example.org") or "*" that bypass the configured proxy.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	bypass := parseNoProxy(noProxy)

	return func(req *http.Request) (*url.URL, error) {
		if bypass.matches(req.URL.Hostname()) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

type noProxyList struct {
	all     bool
	entries []string
}

func parseNoProxy(noProxy string) noProxyList {
	var list noProxyList
	for _, entry := range strings.Split(noProxy, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if entry == "*" {
			list.all = true
			continue
		}
		if host, _, err := net.SplitHostPort(entry); err == nil {
			entry = host
		}
		list.entries = append(list.entries, strings.TrimPrefix(entry, "."))
	}
	return list
}

func (l noProxyList) matches(host string) bool {
	if l.all {
		return true
	}
	host = strings.ToLower(host)
	for _, entry := range l.entries {
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
