package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sheetsync/internal/grid"
	"sheetsync/internal/hub"
	"sheetsync/internal/identity"
	"sheetsync/internal/store"
	"sheetsync/internal/xlsx"
)

const identityKey = "identity"

// Server holds what the HTTP handlers need.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	hub      *hub.Hub
	users    *identity.Directory
	access   identity.AccessChecker
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, log zerolog.Logger, h *hub.Hub, users *identity.Directory, access identity.AccessChecker) *Server {
	return &Server{
		cfg:    cfg,
		log:    log,
		hub:    h,
		users:  users,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type credentials struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type documentParams struct {
	ID string `uri:"id" binding:"required"`
}

func (p documentParams) valid(c *gin.Context) bool {
	if hub.ValidDocumentID(p.ID) {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
	return false
}

func (s *Server) RegisterAction(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.users.Register(c.Request.Context(), req.Username, req.DisplayName, req.Password)
	switch {
	case errors.Is(err, identity.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrReservedName), errors.Is(err, identity.ErrWeakPassword), errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.log.Error().Err(err).Str("user", req.Username).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusCreated)
	}
}

func (s *Server) LoginAction(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := s.users.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "username": req.Username})
}

func (s *Server) LogoutAction(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		s.users.Logout(token)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (s *Server) ValidateAction(c *gin.Context) {
	c.JSON(http.StatusOK, currentIdentity(c))
}

func (s *Server) GetDocumentAction(c *gin.Context) {
	doc, ok := s.document(c)
	if !ok {
		return
	}
	p := doc.Persisted()
	c.JSON(http.StatusOK, gin.H{
		"id":       p.ID,
		"rows":     p.Rows,
		"cols":     p.Cols,
		"version":  p.Version,
		"snapshot": p.Snapshot,
		"values":   doc.Values(),
	})
}

func (s *Server) ExportDocumentAction(c *gin.Context) {
	doc, ok := s.document(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.ID+`.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := xlsx.Export(c.Writer, doc); err != nil {
		s.log.Error().Err(err).Str("document", doc.ID).Msg("export")
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

func (s *Server) ImportDocumentAction(c *gin.Context) {
	var params documentParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !params.valid(c) || !s.canRead(c, params.ID) {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	doc, err := xlsx.Import(f, params.ID, s.cfg.Rows, s.cfg.Cols)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	err = s.hub.Import(c.Request.Context(), doc)
	switch {
	case errors.Is(err, hub.ErrDocumentOpen), errors.Is(err, store.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		s.log.Error().Err(err).Str("document", params.ID).Msg("import")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		rows, cols := doc.Bounds()
		c.JSON(http.StatusCreated, gin.H{"id": doc.ID, "rows": rows, "cols": cols})
	}
}

// document loads the document named in the uri, writing the error response
// itself when it cannot.
func (s *Server) document(c *gin.Context) (*grid.Document, bool) {
	var params documentParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if !params.valid(c) || !s.canRead(c, params.ID) {
		return nil, false
	}
	p, err := s.hub.Snapshot(c.Request.Context(), params.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	p.ID = params.ID
	return grid.FromPersisted(p), true
}

func (s *Server) canRead(c *gin.Context, documentID string) bool {
	id := currentIdentity(c)
	if s.access.CanRead(c.Request.Context(), id.UserID, documentID) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": hub.ErrAccessDenied.Error()})
	return false
}

// authenticate resolves the session token from the Authorization header or
// the token query parameter, which browsers need for websockets.
func (s *Server) authenticate(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	id, err := s.users.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func bearerToken(c *gin.Context) string {
	return strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
}

func currentIdentity(c *gin.Context) identity.Identity {
	id, _ := c.MustGet(identityKey).(identity.Identity)
	return id
}
