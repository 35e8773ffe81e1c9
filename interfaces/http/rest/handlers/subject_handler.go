package handlers

import (
	"net/http"
	"time"

	"learnmap-backend/application/commands"
	"learnmap-backend/application/queries"
	querybus "learnmap-backend/application/queries/bus"
	"learnmap-backend/pkg/auth"
	"learnmap-backend/pkg/common"
	"learnmap-backend/pkg/utils"

	"go.uber.org/zap"
)

// SubjectHandler handles subject-related HTTP requests
type SubjectHandler struct {
	createSubject *commands.CreateSubjectHandler
	queryBus      *querybus.QueryBus
	logger        *zap.Logger
}

// NewSubjectHandler creates a new subject handler
func NewSubjectHandler(
	createSubject *commands.CreateSubjectHandler,
	queryBus *querybus.QueryBus,
	logger *zap.Logger,
) *SubjectHandler {
	return &SubjectHandler{
		createSubject: createSubject,
		queryBus:      queryBus,
		logger:        logger,
	}
}

// CreateSubjectRequest represents the request body for creating a subject
type CreateSubjectRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

// CreateSubjectResponse represents the response for creating a subject
type CreateSubjectResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

// CreateSubject handles POST /subjects
func (h *SubjectHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req CreateSubjectRequest
	if err := common.ParseJSONBody(r, &req, 1<<20); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	cmd := commands.CreateSubjectCommand{
		UserID:      userCtx.UserID,
		Title:       req.Title,
		Description: req.Description,
	}

	subject, err := h.createSubject.Handle(r.Context(), cmd)
	if err != nil {
		h.logger.Error("Failed to create subject",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError, "SUBJECT_CREATE_FAILED", "Failed to create subject")
		return
	}

	common.RespondJSON(w, http.StatusCreated, CreateSubjectResponse{
		ID:        subject.ID().String(),
		Title:     subject.Title(),
		CreatedAt: subject.CreatedAt().Format(time.RFC3339),
	})
}

// ListSubjects handles GET /subjects
func (h *SubjectHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	query := queries.ListSubjectsQuery{UserID: userCtx.UserID}
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to list subjects",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError, "SUBJECT_LIST_FAILED", "Failed to list subjects")
		return
	}

	common.RespondWithMeta(w, http.StatusOK, result, &common.MetaInfo{
		RequestID: common.ExtractRequestID(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
