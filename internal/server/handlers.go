package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/types"
)

type startDuelRequest struct {
	UserIDs         []string `json:"userIds" binding:"required"`
	BotCount        int      `json:"botCount"`
	DurationMinutes int      `json:"durationMinutes" binding:"required"`
	Difficulty      string   `json:"difficulty"`
}

type startPracticeRequest struct {
	UserID       string   `json:"userId" binding:"required"`
	Difficulty   string   `json:"difficulty" binding:"required"`
	Categories   []string `json:"categories"`
	NumQuestions int      `json:"numQuestions" binding:"required"`
}

type startTimeAttackRequest struct {
	UserID          string `json:"userId" binding:"required"`
	Difficulty      string `json:"difficulty" binding:"required"`
	DurationMinutes int    `json:"durationMinutes" binding:"required"`
}

type createLobbyRequest struct {
	HostUserID      string `json:"hostUserId" binding:"required"`
	Difficulty      string `json:"difficulty" binding:"required"`
	DurationMinutes int    `json:"durationMinutes" binding:"required"`
	MinPlayers      int    `json:"minPlayers"`
	MaxPlayers      int    `json:"maxPlayers" binding:"required"`
}

type lobbyMemberRequest struct {
	UserID   string `json:"userId" binding:"required"`
	RoomCode string `json:"roomCode" binding:"required"`
}

func (s *Server) handleStartDuel(c *gin.Context) {
	s.handleStartVersus(c, types.ModeQuickDuel)
}

func (s *Server) handleStartFastestFinger(c *gin.Context) {
	s.handleStartVersus(c, types.ModeFastestFingerFirst)
}

func (s *Server) handleStartVersus(c *gin.Context, mode types.GameMode) {
	var req startDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.UserIDs)+req.BotCount < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a game needs at least two participants"})
		return
	}

	difficulty := types.Difficulty(req.Difficulty)
	var (
		sess  *database.Session
		parts []database.Participant
		err   error
	)
	if mode == types.ModeQuickDuel {
		sess, parts, err = s.engine.StartQuickDuel(c.Request.Context(), req.UserIDs, req.BotCount, req.DurationMinutes, difficulty)
	} else {
		sess, parts, err = s.engine.StartFastestFinger(c.Request.Context(), req.UserIDs, req.BotCount, req.DurationMinutes, difficulty)
	}
	if err != nil {
		s.respondTypedError(c, err)
		return
	}

	s.respondSessionStarted(c, sess, parts)
}

func (s *Server) handleStartPractice(c *gin.Context) {
	var req startPracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	sess, parts, err := s.engine.StartPractice(c.Request.Context(), req.UserID, types.Difficulty(req.Difficulty), req.Categories, req.NumQuestions)
	if err != nil {
		s.respondTypedError(c, err)
		return
	}

	s.respondSessionStarted(c, sess, parts)
}

func (s *Server) handleStartTimeAttack(c *gin.Context) {
	var req startTimeAttackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	sess, parts, err := s.engine.StartTimeAttack(c.Request.Context(), req.UserID, types.Difficulty(req.Difficulty), req.DurationMinutes)
	if err != nil {
		s.respondTypedError(c, err)
		return
	}

	s.respondSessionStarted(c, sess, parts)
}

func (s *Server) handleCreateLobby(c *gin.Context) {
	var req createLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	sess, proj, err := s.lobby.CreateLobby(c.Request.Context(), req.HostUserID,
		types.Difficulty(req.Difficulty), req.DurationMinutes, req.MinPlayers, req.MaxPlayers)
	if err != nil {
		s.respondTypedError(c, err)
		return
	}

	parts, err := s.db.GetParticipants(sess.ID)
	if err != nil {
		s.respondTypedError(c, err)
		return
	}
	views, err := buildParticipantViews([]byte(s.cfg.JWTSecret), sess.ID, parts)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"lobby":        proj,
		"participants": views,
	})
}

func (s *Server) handleJoinLobby(c *gin.Context) {
	var req lobbyMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	sess, proj, err := s.lobby.Join(c.Request.Context(), req.UserID, req.RoomCode)
	if err != nil {
		s.respondTypedError(c, err)
		return
	}

	parts, err := s.db.GetParticipants(sess.ID)
	if err != nil {
		s.respondTypedError(c, err)
		return
	}
	views, err := buildParticipantViews([]byte(s.cfg.JWTSecret), sess.ID, parts)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lobby":        proj,
		"participants": views,
	})
}

func (s *Server) handleLeaveLobby(c *gin.Context) {
	var req lobbyMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.lobby.Leave(c.Request.Context(), req.UserID, req.RoomCode); err != nil {
		s.respondTypedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInitiateCountdown(c *gin.Context) {
	var req lobbyMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.lobby.InitiateCountdown(c.Request.Context(), req.UserID, req.RoomCode); err != nil {
		s.respondTypedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "countdown started"})
}

func (s *Server) handleCancelCountdown(c *gin.Context) {
	var req lobbyMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.lobby.CancelCountdown(c.Request.Context(), req.UserID, req.RoomCode); err != nil {
		s.respondTypedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "countdown cancelled"})
}

func (s *Server) handleListSessions(c *gin.Context) {
	params := GetPaginationParams(c)

	filter := database.SessionFilter{
		UserID: c.Query("userId"),
		Mode:   c.Query("mode"),
		Status: c.Query("status"),
		Offset: params.CalculateOffset(),
		Limit:  params.PageSize,
	}

	sessions, total, err := s.db.ListSessions(filter)
	if err != nil {
		s.respondTypedError(c, err)
		return
	}

	params.Total = total
	SendPaginatedResponse(c, params, sessions)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondSessionStarted returns the new session plus per-human participant
// tokens for socket registration
func (s *Server) respondSessionStarted(c *gin.Context, sess *database.Session, parts []database.Participant) {
	views, err := buildParticipantViews([]byte(s.cfg.JWTSecret), sess.ID, parts)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session":      sess,
		"participants": views,
	})
}

// respondTypedError maps the core's error kinds onto HTTP statuses
func (s *Server) respondTypedError(c *gin.Context, err error) {
	switch {
	case types.IsValidation(err):
		s.respondError(c, http.StatusBadRequest, err)
	case types.IsNotFound(err):
		s.respondError(c, http.StatusNotFound, err)
	case types.IsStateConflict(err):
		s.respondError(c, http.StatusConflict, err)
	default:
		s.respondError(c, http.StatusInternalServerError, err)
	}
}

func (s *Server) respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
