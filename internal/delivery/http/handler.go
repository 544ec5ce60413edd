package http

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"story-server/internal/model"
	"story-server/internal/service"
)

// Handler wires the HTTP surface onto the services.
type Handler struct {
	auth        service.AuthService
	stories     service.StoryService
	synth       *service.SynthService
	maintenance *service.MaintenanceService
	wsHandler   http.Handler
	adminToken  string
	logger      zerolog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	auth service.AuthService,
	stories service.StoryService,
	synth *service.SynthService,
	maintenance *service.MaintenanceService,
	wsHandler http.Handler,
	adminToken string,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		auth:        auth,
		stories:     stories,
		synth:       synth,
		maintenance: maintenance,
		wsHandler:   wsHandler,
		adminToken:  adminToken,
		logger:      logger,
	}
}

// RegisterRoutes attaches all routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))
	router.Use(identityMiddleware(h.auth))

	router.GET("/healthz", h.healthz)
	router.GET("/ws", gin.WrapH(h.wsHandler))

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/logout", requireAuth(), h.logout)
		authGroup.GET("/me", requireAuth(), h.me)
	}

	api := router.Group("/api")
	{
		api.GET("/stories", h.listPublic)
		api.GET("/stories/:id", h.getStory)
		api.GET("/stories/:id/assets/:name", h.getAsset)
		api.GET("/users/:username/stories", requireAuth(), h.listUserStories)

		api.POST("/stories/generate", requireAuth(), h.generate)
		api.POST("/stories/:id/regenerate", requireAuth(), h.regenerate)
		api.PUT("/stories/:id/visibility", requireAuth(), h.setVisibility)
		api.DELETE("/stories/:id", requireAuth(), h.deleteStory)

		synthGroup := api.Group("/synth", requireAuth())
		{
			synthGroup.POST("/narration", h.synthNarration)
			synthGroup.POST("/sound", h.synthSound)
			synthGroup.POST("/image", h.synthImage)
		}

		admin := api.Group("/admin", requireAdminToken(h.adminToken))
		{
			admin.POST("/maintenance/reconcile", h.reconcile)
		}
	}
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- auth ---

func (h *Handler) register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request data: " + err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request data: " + err.Error()})
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) logout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) me(c *gin.Context) {
	identity := identityFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"user_id":  identity.UserID,
		"username": identity.Username,
	})
}

// --- stories ---

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request data: " + err.Error()})
		return
	}

	identity := identityFrom(c)
	handle, err := h.stories.Generate(c.Request.Context(), identity.Username, req.Prompt)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// Конвейер идет асинхронно; прогресс приходит по /ws
	c.JSON(http.StatusAccepted, gin.H{
		"message": "story generation started",
		"path":    handle.Path,
		"url":     handle.URL(),
	})
}

func (h *Handler) regenerate(c *gin.Context) {
	storyID, ok := storyIDParam(c)
	if !ok {
		return
	}
	if err := h.stories.Regenerate(c.Request.Context(), identityFrom(c), storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "asset regeneration started"})
}

func (h *Handler) listPublic(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	stories, err := h.stories.ListPublic(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (h *Handler) listUserStories(c *gin.Context) {
	stories, err := h.stories.ListUserStories(c.Request.Context(), identityFrom(c), c.Param("username"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (h *Handler) getStory(c *gin.Context) {
	storyID, ok := storyIDParam(c)
	if !ok {
		return
	}
	story, doc, err := h.stories.GetStory(c.Request.Context(), identityFrom(c), storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": story, "document": doc})
}

func (h *Handler) getAsset(c *gin.Context) {
	storyID, ok := storyIDParam(c)
	if !ok {
		return
	}
	data, fileName, err := h.stories.GetAsset(c.Request.Context(), identityFrom(c), storyID, c.Param("name"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, assetContentType(fileName), data)
}

type visibilityRequest struct {
	Public *bool `json:"public" binding:"required"`
}

func (h *Handler) setVisibility(c *gin.Context) {
	storyID, ok := storyIDParam(c)
	if !ok {
		return
	}
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request data: " + err.Error()})
		return
	}
	if err := h.stories.SetVisibility(c.Request.Context(), identityFrom(c), storyID, *req.Public); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"public": *req.Public})
}

func (h *Handler) deleteStory(c *gin.Context) {
	storyID, ok := storyIDParam(c)
	if !ok {
		return
	}
	if err := h.stories.Delete(c.Request.Context(), identityFrom(c), storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- ad-hoc synthesis ---

type synthNarrationRequest struct {
	Text  string `json:"text" binding:"required"`
	Index int    `json:"index" binding:"required,min=1"`
}

func (h *Handler) synthNarration(c *gin.Context) {
	var req synthNarrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request data: " + err.Error()})
		return
	}
	data, fileName, err := h.synth.Narration(c.Request.Context(), identityFrom(c), req.Text, req.Index)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, assetContentType(fileName), data)
}

type synthSoundRequest struct {
	Text            string `json:"text" binding:"required"`
	Index           int    `json:"index" binding:"required,min=1"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (h *Handler) synthSound(c *gin.Context) {
	var req synthSoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request data: " + err.Error()})
		return
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	data, fileName, err := h.synth.Sound(c.Request.Context(), identityFrom(c), req.Text, req.Index, duration)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, assetContentType(fileName), data)
}

type synthImageRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Index  int    `json:"index" binding:"required,min=1"`
}

func (h *Handler) synthImage(c *gin.Context) {
	var req synthImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request data: " + err.Error()})
		return
	}
	data, fileName, err := h.synth.Image(c.Request.Context(), identityFrom(c), req.Prompt, req.Index)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, assetContentType(fileName), data)
}

// --- admin ---

func (h *Handler) reconcile(c *gin.Context) {
	report, err := h.maintenance.Reconcile(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- helpers ---

func storyIDParam(c *gin.Context) (uuid.UUID, bool) {
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid story id"})
		return uuid.Nil, false
	}
	return storyID, true
}

// assetContentType infers the reply content type from the asset filename.
// The music track is stored without an extension but is wav audio.
func assetContentType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "audio/wav"
	}
	if ext == ".wav" {
		return "audio/wav"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
