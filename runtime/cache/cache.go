// Package cache is the cache repository (§6.3, Component D): a
// key→bytes store with namespaces, an optional TTL, and a version
// qualifier that folds into the effective key.
package cache

import (
	"context"
	"strings"
)

// Repo is the cache repository interface. Implementations: Memory (in
// process map), File (on-disk key-value), and Redis (redis-backed with a
// 5s timeout / 3 attempt / exponential backoff contract).
type Repo interface {
	// Store writes value under key, namespace, version. expireSeconds <= 0
	// means no expiry.
	Store(ctx context.Context, key string, value []byte, version string, namespace string, expireSeconds int) error
	// Retrieve returns (nil, false, nil) on a cache miss. A backend error
	// is returned to the caller, who treats it as a miss per §7
	// (CacheBackendError: "treat as miss/skip-store, log warning").
	Retrieve(ctx context.Context, key string, version string, namespace string) ([]byte, bool, error)
}

// EffectiveKey formats the effective key per §6.3: "<key>:v<version>" when
// a version is supplied, else "<key>:t<latestFileMTime>" (version already
// carries the "t..." form in that case — see LatestMTime).
func EffectiveKey(key, version, namespace string) string {
	k := key + ":v" + version
	if strings.HasPrefix(version, "t") {
		k = key + ":" + version
	}
	if namespace != "" {
		k = namespace + "/" + k
	}
	return k
}
