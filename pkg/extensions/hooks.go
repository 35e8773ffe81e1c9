package extensions

import (
	"context"
	"fmt"
	"sync"
)

// HookPoint names a point in the request lifecycle where hooks run
type HookPoint string

const (
	// Command hooks
	HookBeforeCommandExecute HookPoint = "before_command_execute"
	HookAfterCommandExecute  HookPoint = "after_command_execute"
	HookCommandFailed        HookPoint = "command_failed"

	// Learning map lifecycle
	HookArticleCreated  HookPoint = "article_created"
	HookArticleDeleted  HookPoint = "article_deleted"
	HookContentFilled   HookPoint = "content_filled"
	HookInsightsDerived HookPoint = "insights_derived"
	HookLayoutSaved     HookPoint = "layout_saved"
)

// Hook is a function executed at a hook point
type Hook func(ctx context.Context, data HookData) error

// HookData carries what happened to which entity
type HookData struct {
	LearningMapID string                 `json:"learning_map_id,omitempty"`
	ArticleID     string                 `json:"article_id,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
	Operation     string                 `json:"operation,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// HookManager holds registered hooks per hook point
type HookManager struct {
	hooks map[HookPoint][]Hook
	mu    sync.RWMutex
}

// NewHookManager creates a new hook manager
func NewHookManager() *HookManager {
	return &HookManager{
		hooks: make(map[HookPoint][]Hook),
	}
}

// Register registers a hook for a hook point
func (m *HookManager) Register(point HookPoint, hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[point] = append(m.hooks[point], hook)
}

// Execute runs all hooks at a hook point, stopping at the first failure
func (m *HookManager) Execute(ctx context.Context, point HookPoint, data HookData) error {
	m.mu.RLock()
	hooks := m.hooks[point]
	m.mu.RUnlock()

	for i, hook := range hooks {
		if err := hook(ctx, data); err != nil {
			return fmt.Errorf("hook %d at %s failed: %w", i, point, err)
		}
	}
	return nil
}

// ExecuteAsync runs hooks in the background, dropping errors. Used for
// side effects that must not delay or fail the triggering operation.
func (m *HookManager) ExecuteAsync(ctx context.Context, point HookPoint, data HookData) {
	m.mu.RLock()
	hooks := m.hooks[point]
	m.mu.RUnlock()

	for _, hook := range hooks {
		go func(h Hook) {
			_ = h(ctx, data)
		}(hook)
	}
}

// Clear removes all hooks for a hook point
func (m *HookManager) Clear(point HookPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hooks, point)
}
