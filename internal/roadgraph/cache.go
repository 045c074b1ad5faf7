package roadgraph

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shivamshaw23/ridepool/internal/model"
)

// cacheTTL bounds how long a shortest-path result is trusted in Redis.
// Road conditions drift; a batch solve should not read hour-old times.
const cacheTTL = 5 * time.Minute

// CachedGraph wraps any RoadGraph with an in-process memo, and
// optionally a Redis-backed second tier shared across cmd/server
// replicas — the same read-through-accelerator role Redis plays for
// the teacher's surge-pricing cache.
type CachedGraph struct {
	inner RoadGraph
	redis *redis.Client // nil disables the Redis tier

	mu   sync.RWMutex
	memo map[[2]model.Node]float64
}

// NewCachedGraph wraps inner with a shortest-path memo. redisClient may
// be nil, in which case only the in-process memo is used (for a
// process running without a cache fleet).
func NewCachedGraph(inner RoadGraph, redisClient *redis.Client) *CachedGraph {
	return &CachedGraph{
		inner: inner,
		redis: redisClient,
		memo:  make(map[[2]model.Node]float64),
	}
}

func redisKey(from, to model.Node) string {
	return fmt.Sprintf("sp:%d:%d", from, to)
}

// ShortestTravelTime checks the in-process memo, then Redis (if
// configured), then falls through to inner and populates both tiers.
func (c *CachedGraph) ShortestTravelTime(from, to model.Node) (float64, error) {
	key := [2]model.Node{from, to}

	c.mu.RLock()
	if d, ok := c.memo[key]; ok {
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	if c.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		val, err := c.redis.Get(ctx, redisKey(from, to)).Result()
		cancel()
		if err == nil {
			d, parseErr := strconv.ParseFloat(val, 64)
			if parseErr == nil {
				c.mu.Lock()
				c.memo[key] = d
				c.mu.Unlock()
				return d, nil
			}
		}
	}

	d, err := c.inner.ShortestTravelTime(from, to)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.memo[key] = d
	c.mu.Unlock()

	if c.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if err := c.redis.Set(ctx, redisKey(from, to), d, cacheTTL).Err(); err != nil {
			log.Printf("[roadgraph] redis cache write failed for %v->%v: %v", from, to, err)
		}
		cancel()
	}

	return d, nil
}

// HasPath delegates to ShortestTravelTime, the same composition inner
// implementations use.
func (c *CachedGraph) HasPath(from, to model.Node) (bool, error) {
	d, err := c.ShortestTravelTime(from, to)
	if err != nil {
		return false, err
	}
	return d < Unreachable, nil
}
