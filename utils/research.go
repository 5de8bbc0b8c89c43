package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/likexian/whois"
)

// ResearchCompanyDomain pulls a few registration facts about a prospect's
// company domain for use as generation context. Failures are soft: an
// empty summary is a valid result.
func ResearchCompanyDomain(website string) (string, error) {
	domain := extractDomain(website)
	if domain == "" {
		return "", fmt.Errorf("no usable domain in %q", website)
	}

	raw, err := whois.Whois(domain)
	if err != nil {
		return "", fmt.Errorf("whois lookup for %s failed: %w", domain, err)
	}

	var facts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "creation date:") ||
			strings.HasPrefix(lower, "registrant organization:") ||
			strings.HasPrefix(lower, "registrant country:") {
			facts = append(facts, line)
		}
		if len(facts) >= 3 {
			break
		}
	}

	if len(facts) == 0 {
		return "", nil
	}
	return fmt.Sprintf("Domain %s: %s", domain, strings.Join(facts, "; ")), nil
}

func extractDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
