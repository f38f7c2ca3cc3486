package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/calebres/aidesk"
	"github.com/calebres/aidesk/controllers"
	"github.com/calebres/aidesk/models"
	"github.com/calebres/aidesk/sectools"
	"github.com/calebres/aidesk/stores"
)

// Server is the HTTP/WebSocket surface over the workbench.
type Server struct {
	wb       *aidesk.Workbench
	catalog  *ModelCatalog
	router   *gin.Engine
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// New builds the router over an assembled workbench.
func New(wb *aidesk.Workbench) *Server {
	s := &Server{
		wb:       wb,
		upgrader: newUpgrader(),
		logger:   wb.Logger,
	}

	if wb.ModelLister != nil {
		s.catalog = NewModelCatalog(wb.ModelLister, wb.Creds, wb.Config.ModelRefreshInterval, wb.Logger)
	}

	router := gin.Default()
	api := router.Group("/api/v1")

	api.POST("/chat", s.handleChatSubmit)
	api.POST("/chat/cancel", s.handleChatCancel)
	api.POST("/chat/new", s.handleChatNew)
	api.POST("/chat/open/:sessionID", s.handleChatOpen)
	api.GET("/chat/transcript", s.handleTranscript)
	api.GET("/chat/params", s.handleGetParams)
	api.PUT("/chat/params", s.handleSetParams)
	api.GET("/ws/chat", s.handleChatWS)

	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:sessionID", s.handleGetSession)
	api.DELETE("/sessions/:sessionID", s.handleDeleteSession)

	api.POST("/modules/:kind", s.handleModuleSubmit)
	api.POST("/modules/:kind/cancel", s.handleModuleCancel)

	api.POST("/tools/transform", s.handleTransform)
	api.GET("/tools/transforms", s.handleListTransforms)

	api.GET("/models", s.handleListModels)

	api.POST("/license/verify", s.handleVerifyLicense)

	api.PUT("/credential", s.handleSaveCredential)
	api.GET("/credential/status", s.handleCredentialStatus)
	api.DELETE("/credential", s.handleClearCredential)

	s.router = router
	return s
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.wb.Config.Port)
	s.logger.Printf("Listening on %s", addr)
	return s.router.Run(addr)
}

// Router exposes the gin engine for embedding and tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

type submitRequest struct {
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

func (s *Server) handleChatSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Pre-validate before switching the response to an event stream.
	if s.wb.Conversation.State() == controllers.StateStreaming {
		c.JSON(http.StatusConflict, gin.H{"error": controllers.ErrBusy.Error()})
		return
	}

	writer := newSSEWriter(c)
	err := s.wb.Conversation.Submit(c.Request.Context(), req.Text, req.Attachments, writer)
	switch {
	case err == nil:
	case errors.Is(err, controllers.ErrBlankInput):
		writer.WriteError(err.Error())
	case errors.Is(err, controllers.ErrBusy):
		// Lost the pre-check race; the submit was a no-op.
		writer.WriteError(err.Error())
	default:
		s.logger.Printf("Chat submit failed: %v", err)
	}
}

func (s *Server) handleChatCancel(c *gin.Context) {
	s.wb.Conversation.Cancel()
	c.JSON(http.StatusOK, gin.H{"state": s.wb.Conversation.State()})
}

func (s *Server) handleChatNew(c *gin.Context) {
	session := s.wb.Conversation.NewSession()
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
}

func (s *Server) handleChatOpen(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if err := s.wb.Conversation.LoadSession(sessionID); err != nil {
		if errors.Is(err, stores.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

func (s *Server) handleTranscript(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_id": s.wb.Conversation.SessionID(),
		"state":      s.wb.Conversation.State(),
		"messages":   s.wb.Conversation.Transcript(),
	})
}

func (s *Server) handleGetParams(c *gin.Context) {
	c.JSON(http.StatusOK, s.wb.Conversation.Params())
}

func (s *Server) handleSetParams(c *gin.Context) {
	var params models.GenerationParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.wb.Conversation.SetParams(params)
	c.JSON(http.StatusOK, s.wb.Conversation.Params())
}

func (s *Server) handleListSessions(c *gin.Context) {
	infos, err := s.wb.Store.ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": infos})
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.wb.Store.GetSession(c.Param("sessionID"))
	if err != nil {
		if errors.Is(err, stores.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.wb.Store.DeleteSession(c.Param("sessionID")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("sessionID")})
}

func (s *Server) handleModuleSubmit(c *gin.Context) {
	kind := controllers.ModuleKind(c.Param("kind"))
	controller, ok := s.wb.Modules[kind]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown module: %s", kind)})
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if controller.State() == controllers.StateStreaming {
		c.JSON(http.StatusConflict, gin.H{"error": controllers.ErrBusy.Error()})
		return
	}

	writer := newSSEWriter(c)
	err := controller.Submit(c.Request.Context(), req.Text, req.Attachments, writer)
	switch {
	case err == nil:
	case errors.Is(err, controllers.ErrBlankInput),
		errors.Is(err, controllers.ErrAttachmentRequired),
		errors.Is(err, controllers.ErrBusy):
		writer.WriteError(err.Error())
	default:
		s.logger.Printf("Module %s submit failed: %v", kind, err)
	}
}

func (s *Server) handleModuleCancel(c *gin.Context) {
	kind := controllers.ModuleKind(c.Param("kind"))
	controller, ok := s.wb.Modules[kind]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown module: %s", kind)})
		return
	}
	controller.Cancel()
	c.JSON(http.StatusOK, gin.H{"state": controller.State()})
}

type transformRequest struct {
	Kind  sectools.Kind `json:"kind"`
	Input string        `json:"input"`
}

func (s *Server) handleTransform(c *gin.Context) {
	var req transformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": sectools.Apply(req.Kind, req.Input)})
}

func (s *Server) handleListTransforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transforms": sectools.Kinds()})
}

func (s *Server) handleListModels(c *gin.Context) {
	if s.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model catalog unavailable"})
		return
	}
	modelList, err := s.catalog.Models(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": modelList})
}

type verifyRequest struct {
	Email string `json:"email"`
	Key   string `json:"key"`
}

func (s *Server) handleVerifyLicense(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	verdict := s.wb.Verifier.Verify(c.Request.Context(), req.Email, req.Key)
	c.JSON(http.StatusOK, verdict)
}

type credentialRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) handleSaveCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Secret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}
	if err := s.wb.Creds.Save(req.Secret); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (s *Server) handleCredentialStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"configured": s.wb.Creds.Exists()})
}

func (s *Server) handleClearCredential(c *gin.Context) {
	if err := s.wb.Creds.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
