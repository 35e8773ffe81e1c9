// Package websocket serves live learning-map diagrams. Each open map gets
// one MapSession that reconciles the rendered diagram against the canonical
// map and streams node/edge snapshots to every viewer. Domain events routed
// through the in-process event bus trigger reconciliation, so a diagram
// updates the moment an article is generated or a question is asked.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"learnmap-backend/application/diagram"
	"learnmap-backend/application/ports"
	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/events"
	"learnmap-backend/pkg/auth"
)

// reconcileTimeout bounds the map reload plus diff triggered by one domain
// event or client refresh. Layout itself runs beyond it on the scheduler.
const reconcileTimeout = 15 * time.Second

// subscribedEvents are the canonical-map changes that require a diagram
// reconcile.
var subscribedEvents = []string{
	"article.created",
	"article.content_filled",
	"article.insights_derived",
	"article.deleted",
	"question.asked",
}

// Hub tracks one MapSession per open learning map and connects WebSocket
// clients to them. It is also the event bus subscriber that turns domain
// events into reconcile calls.
type Hub struct {
	mapRepo   ports.LearningMapRepository
	snapshots ports.LayoutSnapshotStore
	engine    diagram.LayoutEngine
	domainCfg *config.DomainConfig
	publisher ports.EventPublisher
	logger    *zap.Logger
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*MapSession
}

// NewHub creates a hub over the given persistence and layout dependencies.
func NewHub(
	mapRepo ports.LearningMapRepository,
	snapshots ports.LayoutSnapshotStore,
	engine diagram.LayoutEngine,
	domainCfg *config.DomainConfig,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		mapRepo:   mapRepo,
		snapshots: snapshots,
		engine:    engine,
		domainCfg: domainCfg,
		publisher: publisher,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			// Browser clients carry the JWT in the query string, so origin
			// enforcement happens at the gateway in front of this server.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*MapSession),
	}
}

// Register subscribes the hub to every event type that can change a diagram.
func (h *Hub) Register(bus ports.EventBus) error {
	for _, eventType := range subscribedEvents {
		if err := bus.Subscribe(eventType, h); err != nil {
			return err
		}
	}
	return nil
}

// ServeWS upgrades an authenticated request into a live diagram connection
// for one learning map. The caller resolves learningMapID from the route.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, learningMapID string) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := userCtx.UserID

	lm, err := h.mapRepo.GetByID(r.Context(), aggregates.LearningMapID(learningMapID))
	if err != nil {
		h.logger.Warn("learning map load failed",
			zap.String("learning_map_id", learningMapID),
			zap.Error(err),
		)
		http.Error(w, "learning map not found", http.StatusNotFound)
		return
	}
	if lm.UserID() != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	session, created, err := h.sessionFor(r.Context(), learningMapID, lm)
	if err != nil {
		h.logger.Error("session start failed",
			zap.String("learning_map_id", learningMapID),
			zap.Error(err),
		)
		http.Error(w, "learning map does not form a rooted tree", http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		if created {
			h.dropSessionIfEmpty(learningMapID, session)
		}
		return
	}

	client := &Client{
		hub:     h,
		session: session,
		conn:    conn,
		userID:  userID,
		send:    make(chan interface{}, sendBufferSize),
		logger: h.logger.With(
			zap.String("learning_map_id", learningMapID),
			zap.String("user_id", userID),
		),
	}
	session.attach(client)

	h.logger.Info("diagram client connected",
		zap.String("learning_map_id", learningMapID),
		zap.String("user_id", userID),
	)

	go client.writePump()
	go client.readPump()
}

// sessionFor returns the running session for a map, starting one when no
// client currently has the map open.
func (h *Hub) sessionFor(ctx context.Context, learningMapID string, lm *aggregates.LearningMap) (*MapSession, bool, error) {
	h.mu.Lock()
	if session, ok := h.sessions[learningMapID]; ok {
		h.mu.Unlock()
		return session, false, nil
	}
	session := NewMapSession(learningMapID, h.engine, h.domainCfg, h.snapshots, h.publisher, h.logger)
	h.sessions[learningMapID] = session
	h.mu.Unlock()

	if err := session.Start(ctx, lm); err != nil {
		h.dropSessionIfEmpty(learningMapID, session)
		return nil, true, err
	}
	return session, true, nil
}

// unregister detaches a client and tears the session down when it was the
// last viewer.
func (h *Hub) unregister(c *Client) {
	// Detach before closing the channel so no broadcast can race the close.
	remaining := c.session.detach(c)
	c.close()
	if remaining == 0 {
		h.dropSessionIfEmpty(c.session.learningMapID, c.session)
		h.logger.Info("diagram session closed",
			zap.String("learning_map_id", c.session.learningMapID),
		)
	}
}

func (h *Hub) dropSessionIfEmpty(learningMapID string, session *MapSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.sessions[learningMapID]; ok && current == session {
		session.mu.Lock()
		empty := len(session.clients) == 0
		session.mu.Unlock()
		if empty {
			delete(h.sessions, learningMapID)
		}
	}
}

// refresh reloads the canonical map and reconciles the session against it.
func (h *Hub) refresh(session *MapSession) error {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	lm, err := h.mapRepo.GetByID(ctx, aggregates.LearningMapID(session.learningMapID))
	if err != nil {
		return err
	}
	return session.Reconcile(ctx, lm)
}

// Handle implements ports.EventHandler. Events for maps nobody is viewing
// are ignored.
func (h *Hub) Handle(ctx context.Context, event events.DomainEvent) error {
	learningMapID := learningMapIDOf(event)
	if learningMapID == "" {
		return nil
	}

	h.mu.Lock()
	session, ok := h.sessions[learningMapID]
	h.mu.Unlock()
	if !ok {
		return nil
	}

	reconcileCtx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	lm, err := h.mapRepo.GetByID(reconcileCtx, aggregates.LearningMapID(learningMapID))
	if err != nil {
		return err
	}
	return session.Reconcile(reconcileCtx, lm)
}

// CanHandle implements ports.EventHandler.
func (h *Hub) CanHandle(eventType string) bool {
	for _, t := range subscribedEvents {
		if t == eventType {
			return true
		}
	}
	return false
}

// learningMapIDOf extracts the owning map's ID from a diagram-relevant event.
func learningMapIDOf(event events.DomainEvent) string {
	switch e := event.(type) {
	case events.ArticleCreated:
		return e.LearningMapID
	case events.ArticleContentFilled:
		return e.LearningMapID
	case events.ArticleInsightsDerived:
		return e.LearningMapID
	case events.ArticleDeleted:
		return e.LearningMapID
	case events.QuestionAsked:
		return e.LearningMapID
	default:
		return ""
	}
}
