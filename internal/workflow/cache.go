package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/cache"
	"admissions/pkg/logger"

	"github.com/google/uuid"
)

const graphCacheTTL = 10 * time.Minute

// RedisGraphCache caches workflow graphs in Redis with an in-process layer in
// front. Active workflow graphs are immutable, so staleness within the TTL is
// only possible across a deactivation, which invalidates explicitly.
type RedisGraphCache struct {
	redis  *cache.RedisCache
	logger logger.Logger

	mu    sync.RWMutex
	local map[uuid.UUID]*domain.WorkflowGraph
}

func NewRedisGraphCache(redis *cache.RedisCache, log logger.Logger) *RedisGraphCache {
	return &RedisGraphCache{
		redis:  redis,
		logger: log,
		local:  make(map[uuid.UUID]*domain.WorkflowGraph),
	}
}

func graphKey(workflowID uuid.UUID) string {
	return fmt.Sprintf("workflow:graph:%s", workflowID)
}

func (c *RedisGraphCache) Get(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowGraph, bool) {
	c.mu.RLock()
	g, ok := c.local[workflowID]
	c.mu.RUnlock()
	if ok {
		return g, true
	}

	if c.redis == nil {
		return nil, false
	}

	var graph domain.WorkflowGraph
	if err := c.redis.Get(ctx, graphKey(workflowID), &graph); err != nil {
		if err != cache.ErrMiss {
			c.logger.Warn("Workflow graph cache read failed", map[string]interface{}{
				"workflow_id": workflowID,
				"error":       err.Error(),
			})
		}
		return nil, false
	}

	c.mu.Lock()
	c.local[workflowID] = &graph
	c.mu.Unlock()

	return &graph, true
}

func (c *RedisGraphCache) Put(ctx context.Context, graph *domain.WorkflowGraph) {
	c.mu.Lock()
	c.local[graph.Workflow.ID] = graph
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, graphKey(graph.Workflow.ID), graph, graphCacheTTL); err != nil {
		c.logger.Warn("Workflow graph cache write failed", map[string]interface{}{
			"workflow_id": graph.Workflow.ID,
			"error":       err.Error(),
		})
	}
}

func (c *RedisGraphCache) Invalidate(ctx context.Context, workflowID uuid.UUID) {
	c.mu.Lock()
	delete(c.local, workflowID)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	if err := c.redis.Delete(ctx, graphKey(workflowID)); err != nil {
		c.logger.Warn("Workflow graph cache invalidation failed", map[string]interface{}{
			"workflow_id": workflowID,
			"error":       err.Error(),
		})
	}
}
