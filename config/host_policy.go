package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// HostPolicyConfig restricts which hosts documents may be fetched from.
// An empty Allow list allows every host not listed in Disallow. Entries
// match the host itself and its subdomains.
type HostPolicyConfig struct {
	Allow    []string `mapstructure:"allow" json:"allow"`
	Disallow []string `mapstructure:"disallow" json:"disallow"`
}

// Normalize cleans entries and removes duplicates.
func (c HostPolicyConfig) Normalize() HostPolicyConfig {
	norm := c
	norm.Allow = sanitizeDomainList(norm.Allow)
	norm.Disallow = sanitizeDomainList(norm.Disallow)
	return norm
}

// Validate ensures configured policy entries do not conflict.
func (c HostPolicyConfig) Validate() error {
	norm := c.Normalize()

	allow := make(map[string]struct{}, len(norm.Allow))
	for _, host := range norm.Allow {
		allow[host] = struct{}{}
	}
	for _, host := range norm.Disallow {
		if _, ok := allow[host]; ok {
			return fmt.Errorf("host policy conflict: host %q present in both allow and disallow lists", host)
		}
	}
	return nil
}

// Allows reports whether rawURL may be fetched under the policy.
func (c HostPolicyConfig) Allows(rawURL string) bool {
	host := normalizeHost(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	if host == "" {
		return false
	}
	for _, d := range c.Disallow {
		if matchesHost(host, d) {
			return false
		}
	}
	if len(c.Allow) == 0 {
		return true
	}
	for _, a := range c.Allow {
		if matchesHost(host, a) {
			return true
		}
	}
	return false
}

func matchesHost(host, entry string) bool {
	entry = normalizeHost(entry)
	return host == entry || strings.HasSuffix(host, "."+entry)
}

func sanitizeDomainList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		host := normalizeHost(raw)
		if host == "" {
			continue
		}
		seen[host] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func normalizeHost(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil && u.Host != "" {
			return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
	}
	value = strings.TrimPrefix(value, "www.")
	return value
}
