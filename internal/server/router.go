package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizforge/deskbank/backend/internal/assets"
	"go.uber.org/zap"
)

const userIDContextKey = "deskbank_user_id"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingAssetsService = errors.New("assets service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates the bearer tokens protecting the API.
type TokenManager interface {
	IssueToken(ctx context.Context, subject, issueSecret string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// CreatorRegistry records creators seen during token exchange.
type CreatorRegistry interface {
	Touch(userID, displayName string) (string, error)
}

// Dependencies wires the HTTP surface to the synchronization engine.
type Dependencies struct {
	TokenManager  TokenManager
	AssetsService *assets.Service
	Creators      CreatorRegistry
	Events        *EventDispatcher
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin handler serving the desk and library API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.AssetsService == nil {
		return nil, errMissingAssetsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:   deps.TokenManager,
		service:  deps.AssetsService,
		creators: deps.Creators,
		events:   events,
		logger:   logger,
	}

	router.POST("/auth/token", handler.handleIssueToken)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/library/search", handler.handleSearch)
	protected.POST("/library/questions/:assetId/:questionId/broadcast", handler.handleBroadcast)
	protected.POST("/desks/:desk/records/:recordId/push", handler.handleReverseSync)
	protected.POST("/desks/:desk/imports", handler.handleImport)
	protected.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	tokens   TokenManager
	service  *assets.Service
	creators CreatorRegistry
	events   *EventDispatcher
	logger   *zap.Logger
}

type tokenRequestPayload struct {
	Subject     string `json:"subject"`
	DisplayName string `json:"display_name"`
	IssueSecret string `json:"issue_secret"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Subject) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), strings.TrimSpace(request.Subject), request.IssueSecret)
	if err != nil {
		h.logger.Warn("token issue rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if h.creators != nil {
		if _, err := h.creators.Touch(request.Subject, request.DisplayName); err != nil {
			h.logger.Warn("creator registry update failed", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	results, err := h.service.SearchLibrary(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.logger.Error("library search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type broadcastResponsePayload struct {
	Personal int `json:"personal"`
	Group    int `json:"group"`
	Coaching int `json:"coaching"`
	Total    int `json:"total"`
}

func (h *httpHandler) handleBroadcast(c *gin.Context) {
	key, err := assets.NewQuestionKey(c.Param("assetId"), c.Param("questionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_question_key"})
		return
	}

	counts, err := h.service.SyncAllDesks(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("broadcast failed",
			zap.String("asset_id", key.AssetID),
			zap.String("question_id", key.QuestionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast_failed"})
		return
	}

	if counts.Total > 0 {
		h.events.Publish(SyncEvent{
			EventType: EventTypeBroadcast,
			AssetRef:  key.Ref(),
			Desks:     affectedDesks(counts),
			Timestamp: time.Now().UTC(),
		})
	}

	c.JSON(http.StatusOK, broadcastResponsePayload{
		Personal: counts.Personal,
		Group:    counts.Group,
		Coaching: counts.Coaching,
		Total:    counts.Total,
	})
}

func (h *httpHandler) handleReverseSync(c *gin.Context) {
	kind, err := assets.ParseDeskKind(c.Param("desk"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_desk"})
		return
	}
	recordID := c.Param("recordId")

	updated, err := h.service.SyncDeskToLibrary(c.Request.Context(), kind, recordID)
	if err != nil {
		h.logger.Error("reverse sync failed",
			zap.String("desk", string(kind)),
			zap.String("record_id", recordID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reverse_sync_failed"})
		return
	}

	if updated {
		h.events.Publish(SyncEvent{
			EventType: EventTypeReverseSync,
			Desks:     []string{string(kind)},
			RecordID:  recordID,
			Timestamp: time.Now().UTC(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

type importRequestPayload struct {
	AssetID    string `json:"asset_id"`
	QuestionID string `json:"question_id"`
	CourseID   string `json:"course_id"`
	GroupID    string `json:"group_id"`
	CategoryID string `json:"category_id"`
}

func (h *httpHandler) handleImport(c *gin.Context) {
	kind, err := assets.ParseDeskKind(c.Param("desk"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_desk"})
		return
	}

	var request importRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	key, err := assets.NewQuestionKey(request.AssetID, request.QuestionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_question_key"})
		return
	}

	record, err := h.service.ImportToDesk(c.Request.Context(), kind, assets.ImportRequest{
		Key:        key,
		CourseID:   request.CourseID,
		GroupID:    request.GroupID,
		CategoryID: request.CategoryID,
		CreatedBy:  c.GetString(userIDContextKey),
	})
	if err != nil {
		h.logger.Error("import failed",
			zap.String("desk", string(kind)),
			zap.String("asset_id", key.AssetID),
			zap.String("question_id", key.QuestionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import_failed"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "question_not_found"})
		return
	}

	h.events.Publish(SyncEvent{
		EventType: EventTypeImport,
		AssetRef:  record.AssetRef,
		Desks:     []string{string(kind)},
		RecordID:  record.ID,
		Timestamp: time.Now().UTC(),
	})

	c.JSON(http.StatusCreated, gin.H{"record": recordPayload(*record)})
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	stream, cleanup := h.events.Subscribe(c.Request.Context())
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"ts": time.Now().UTC().Unix()})
			c.Writer.Flush()
		case event, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(event.EventType, event)
			c.Writer.Flush()
		}
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func affectedDesks(counts assets.BroadcastCounts) []string {
	desks := make([]string, 0, 3)
	if counts.Personal > 0 {
		desks = append(desks, string(assets.DeskPersonal))
	}
	if counts.Group > 0 {
		desks = append(desks, string(assets.DeskGroup))
	}
	if counts.Coaching > 0 {
		desks = append(desks, string(assets.DeskCoaching))
	}
	return desks
}

type deskRecordPayload struct {
	ID           string   `json:"id"`
	Desk         string   `json:"desk"`
	CourseID     string   `json:"course_id,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
	CategoryID   string   `json:"category_id,omitempty"`
	CreatedBy    string   `json:"created_by,omitempty"`
	Marks        int      `json:"marks"`
	AssetRef     string   `json:"asset_ref,omitempty"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
}

func recordPayload(record assets.DeskRecord) deskRecordPayload {
	return deskRecordPayload{
		ID:           record.ID,
		Desk:         string(record.Desk),
		CourseID:     record.CourseID,
		GroupID:      record.GroupID,
		CategoryID:   record.CategoryID,
		CreatedBy:    record.CreatedBy,
		Marks:        record.Marks,
		AssetRef:     record.AssetRef.String(),
		Question:     record.Question,
		Options:      record.Options,
		CorrectIndex: record.CorrectIndex,
		Explanation:  record.Explanation,
		Difficulty:   string(record.Difficulty),
	}
}
