package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

// currentCacheVersion defines the version of the cached commit payload.
const currentCacheVersion = 1

// cachedSourceClient serves commit details from the cache store. Commits are immutable,
// so entries never go stale; history listings always hit the API.
type cachedSourceClient struct {
	contract.SourceClient
	store contract.CacheStore
	now   func() time.Time
}

// newCachedSourceClient wraps client with store. A nil store disables caching.
func newCachedSourceClient(client contract.SourceClient, store contract.CacheStore) contract.SourceClient {
	if store == nil {
		return client
	}
	return &cachedSourceClient{SourceClient: client, store: store, now: time.Now}
}

// GetCommit implements the SourceClient interface.
func (c *cachedSourceClient) GetCommit(ctx context.Context, repo string, sha string) (*schema.Commit, error) {
	key := commitCacheKey(repo, sha)
	if commit := c.checkCacheHit(key); commit != nil {
		return commit, nil
	}

	commit, err := c.SourceClient.GetCommit(ctx, repo, sha)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(commit); err == nil {
		if err := c.store.Set(key, data, currentCacheVersion, c.now().Unix()); err != nil {
			contract.LogWarn("Failed to cache commit "+sha, err)
		}
	}
	return commit, nil
}

// checkCacheHit attempts to retrieve and validate a cached commit.
func (c *cachedSourceClient) checkCacheHit(key string) *schema.Commit {
	data, version, _, err := c.store.Get(key)
	if err != nil || version != currentCacheVersion {
		return nil
	}
	var commit schema.Commit
	if err := json.Unmarshal(data, &commit); err != nil || commit.SHA == "" {
		return nil
	}
	return &commit
}

// commitCacheKey scopes a commit SHA to its repository.
func commitCacheKey(repo, sha string) string {
	return "commit:" + repo + ":" + sha
}
