package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"learnmap-backend/application/commands"
	commandbus "learnmap-backend/application/commands/bus"
	cmdhandlers "learnmap-backend/application/commands/handlers"
	"learnmap-backend/application/queries"
	querybus "learnmap-backend/application/queries/bus"
	"learnmap-backend/pkg/auth"
	"learnmap-backend/pkg/common"
	apperrors "learnmap-backend/pkg/errors"
	"learnmap-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MapHandler handles learning-map HTTP requests
type MapHandler struct {
	createMap    *commands.CreateLearningMapHandler
	orchestrator *cmdhandlers.AskQuestionOrchestrator
	commandBus   *commandbus.CommandBus
	queryBus     *querybus.QueryBus
	errors       *apperrors.ErrorHandler
	logger       *zap.Logger
}

// NewMapHandler creates a new learning-map handler
func NewMapHandler(
	createMap *commands.CreateLearningMapHandler,
	orchestrator *cmdhandlers.AskQuestionOrchestrator,
	commandBus *commandbus.CommandBus,
	queryBus *querybus.QueryBus,
	logger *zap.Logger,
) *MapHandler {
	return &MapHandler{
		createMap:    createMap,
		orchestrator: orchestrator,
		commandBus:   commandBus,
		queryBus:     queryBus,
		errors:       apperrors.NewErrorHandler(logger, false),
		logger:       logger,
	}
}

// CreateMapRequest represents the request body for creating a learning map
type CreateMapRequest struct {
	SubjectID string `json:"subjectId" validate:"required"`
	Name      string `json:"name" validate:"required,min=1,max=200"`
}

// CreateMapResponse represents the response for creating a learning map
type CreateMapResponse struct {
	ID            string `json:"id"`
	SubjectID     string `json:"subjectId"`
	Name          string `json:"name"`
	RootArticleID string `json:"rootArticleId"`
	CreatedAt     string `json:"createdAt"`
}

// AskQuestionRequest represents the request body for asking a question
type AskQuestionRequest struct {
	ParentArticleID string `json:"parentArticleId" validate:"required"`
	Text            string `json:"text" validate:"required,min=1,max=500"`
}

// AskQuestionResponse represents the response for asking a question
type AskQuestionResponse struct {
	QuestionID string `json:"questionId"`
	ArticleID  string `json:"articleId"`
	Text       string `json:"text"`
}

// CreateMap handles POST /maps
func (h *MapHandler) CreateMap(w http.ResponseWriter, r *http.Request) {
	var req CreateMapRequest
	if err := common.ParseJSONBody(r, &req, 1<<20); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := commands.CreateLearningMapCommand{
		UserID:    userCtx.UserID,
		SubjectID: req.SubjectID,
		Name:      req.Name,
	}

	result, err := h.createMap.Handle(r.Context(), cmd)
	if err != nil {
		if apperrors.IsNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Subject not found")
			return
		}
		h.logger.Error("Failed to create learning map",
			zap.String("userID", userCtx.UserID),
			zap.String("subjectID", req.SubjectID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to create learning map")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateMapResponse{
		ID:            result.Map.ID().String(),
		SubjectID:     result.Map.SubjectID(),
		Name:          result.Map.Name(),
		RootArticleID: result.Root.ID().String(),
		CreatedAt:     result.Map.CreatedAt().Format(time.RFC3339),
	})
}

// ListMaps handles GET /maps
func (h *MapHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.ListLearningMapsQuery{
		UserID:    userCtx.UserID,
		SubjectID: r.URL.Query().Get("subjectId"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to list learning maps",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to list learning maps")
		return
	}

	listResult, ok := result.(*queries.ListLearningMapsResult)
	if !ok {
		h.respondJSON(w, http.StatusOK, result)
		return
	}

	params := common.ExtractPaginationParams(r)
	page := paginateMaps(listResult.Maps, params)
	common.RespondWithMeta(w, http.StatusOK, page, &common.MetaInfo{
		Pagination: common.BuildPaginationMeta(params.Page, params.PageSize, listResult.TotalCount),
	})
}

// paginateMaps slices one page out of the full summary list
func paginateMaps(maps []queries.LearningMapSummary, params common.PaginationParams) []queries.LearningMapSummary {
	offset := params.CalculateOffset()
	if offset >= len(maps) {
		return []queries.LearningMapSummary{}
	}
	end := offset + params.PageSize
	if end > len(maps) {
		end = len(maps)
	}
	return maps[offset:end]
}

// GetMap handles GET /maps/{mapID}
func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	mapID := chi.URLParam(r, "mapID")
	if mapID == "" {
		h.respondError(w, http.StatusBadRequest, "Map ID is required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.GetLearningMapQuery{
		LearningMapID: mapID,
		UserID:        userCtx.UserID,
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		if apperrors.IsNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Learning map not found")
			return
		}
		if apperrors.IsForbidden(err) {
			h.respondError(w, http.StatusForbidden, "Access denied")
			return
		}
		h.logger.Error("Failed to get learning map",
			zap.String("mapID", mapID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to get learning map")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetLayout handles GET /maps/{mapID}/layout
func (h *MapHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	mapID := chi.URLParam(r, "mapID")
	if mapID == "" {
		h.respondError(w, http.StatusBadRequest, "Map ID is required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.GetMapLayoutQuery{
		UserID:        userCtx.UserID,
		LearningMapID: mapID,
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		// Layout errors carry their own status: 404 for a missing map,
		// 422 when the stored shape is not a tree, 500 for layout failures
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// SaveLayoutRequest represents the request body for persisting a layout
type SaveLayoutRequest struct {
	Nodes       []commands.SnapshotNodeInput `json:"nodes" validate:"required,min=1,dive"`
	Edges       []commands.SnapshotEdgeInput `json:"edges" validate:"dive"`
	NodeHeights map[string]float64           `json:"nodeHeights"`
}

// SaveLayout handles PUT /maps/{mapID}/layout. The client sends back the
// positions and measured heights it rendered with, so the next open of the
// map skips a fresh layout pass.
func (h *MapHandler) SaveLayout(w http.ResponseWriter, r *http.Request) {
	mapID := chi.URLParam(r, "mapID")
	if mapID == "" {
		h.respondError(w, http.StatusBadRequest, "Map ID is required")
		return
	}

	var req SaveLayoutRequest
	if err := common.ParseJSONBody(r, &req, 1<<20); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := commands.SaveLayoutSnapshotCommand{
		UserID:        userCtx.UserID,
		LearningMapID: mapID,
		Nodes:         req.Nodes,
		Edges:         req.Edges,
		NodeHeights:   req.NodeHeights,
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AskQuestion handles POST /maps/{mapID}/questions
func (h *MapHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	mapID := chi.URLParam(r, "mapID")
	if mapID == "" {
		h.respondError(w, http.StatusBadRequest, "Map ID is required")
		return
	}

	var req AskQuestionRequest
	if err := common.ParseJSONBody(r, &req, 1<<20); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := commands.AskQuestionCommand{
		UserID:          userCtx.UserID,
		LearningMapID:   mapID,
		ParentArticleID: req.ParentArticleID,
		Text:            req.Text,
	}

	result, err := h.orchestrator.Handle(r.Context(), cmd)
	if err != nil {
		switch {
		case apperrors.IsNotFound(err):
			h.respondError(w, http.StatusNotFound, "Learning map or parent article not found")
		case apperrors.IsForbidden(err):
			h.respondError(w, http.StatusForbidden, "Access denied")
		case apperrors.IsConflict(err):
			h.respondError(w, http.StatusConflict, "Map is being modified, retry shortly")
		case apperrors.IsValidation(err):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Failed to ask question",
				zap.String("mapID", mapID),
				zap.String("userID", userCtx.UserID),
				zap.Error(err),
			)
			h.respondError(w, http.StatusInternalServerError, "Failed to ask question")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, AskQuestionResponse{
		QuestionID: result.Question.ID().String(),
		ArticleID:  result.Article.ID().String(),
		Text:       result.Question.Text(),
	})
}

// Helper methods

func (h *MapHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *MapHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
