package cache

import (
	"fmt"
)

// SliceKey addresses a rendered slice of one output version.
func SliceKey(version, prefix string) string {
	return fmt.Sprintf("triage:slice:%s:%s", version, prefix)
}

// ClusterListPrefix is shared by every cached cluster listing page.
const ClusterListPrefix = "triage:clusters:"

// ClusterListKey addresses one page of a cluster listing.
func ClusterListKey(filterHash string) string {
	return ClusterListPrefix + filterHash
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
