package compare

import (
	"os"
	"strings"
)

// noProxyEnvForLocalhost returns NO_PROXY/no_proxy entries that make sure
// traffic to the local testserver never goes through a developer's proxy.
// Both reqwest (wrkr) and Go net/http (k6) honor these variables.
func noProxyEnvForLocalhost() []string {
	existing := os.Getenv("NO_PROXY")
	if existing == "" {
		existing = os.Getenv("no_proxy")
	}

	merged := mergeNoProxy(existing, "127.0.0.1", "localhost", "::1")

	return []string{"NO_PROXY=" + merged, "no_proxy=" + merged}
}

func mergeNoProxy(existing string, add ...string) string {
	var parts []string

	seen := map[string]bool{}

	for _, p := range strings.Split(existing, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}

		seen[p] = true
		parts = append(parts, p)
	}

	for _, p := range add {
		if !seen[p] {
			seen[p] = true
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, ",")
}
