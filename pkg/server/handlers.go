package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feltcraft/dealerd/pkg/cards"
	"github.com/feltcraft/dealerd/pkg/notify"
	"github.com/feltcraft/dealerd/pkg/poker"
)

// Router builds the HTTP surface. hub may be nil to disable websocket
// subscriptions; gatherer may be nil to disable /metrics.
func (s *Server) Router(hub *notify.Hub, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/users", s.handleCreateUser)
		api.POST("/tables", s.handleCreateTable)
		api.GET("/tables", s.handleListTables)
		api.GET("/tables/:id", s.handleSnapshot)
		api.GET("/tables/:id/events", s.handleEvents)
		api.POST("/tables/:id/join", s.handleJoin)
		api.POST("/tables/:id/leave", s.handleLeave)
		api.POST("/tables/:id/kick", s.handleKick)
		api.POST("/tables/:id/start", s.handleStartHand)
		api.POST("/tables/:id/reset", s.handleReset)
		api.POST("/tables/:id/actions", s.handleAction)
		api.POST("/tables/:id/cards", s.handleDealCard)
		api.POST("/devices", s.handleRegisterDevice)
	}

	if hub != nil {
		r.GET("/ws/tables/:id", func(c *gin.Context) {
			if err := hub.Subscribe(c.Writer, c.Request, c.Param("id")); err != nil {
				s.log.Errorf("Failed to upgrade websocket: %v", err)
			}
		})
	}
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// callerID is the authenticated identity. Authentication proper lives in
// front of this service; here the header is trusted.
func callerID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

// httpStatus maps engine error kinds onto HTTP statuses.
func httpStatus(err error) int {
	switch poker.KindOf(err) {
	case poker.KindNotFound:
		return http.StatusNotFound
	case poker.KindForbidden:
		return http.StatusForbidden
	case poker.KindInvalidRaise, poker.KindInvalidBarcode, poker.KindDeviceMisconfigured, poker.KindInsufficientBalance:
		return http.StatusBadRequest
	case poker.KindWrongTurn, poker.KindInvalidState, poker.KindDuplicateCard, poker.KindTableFull, poker.KindJoined:
		return http.StatusConflict
	case poker.KindStoreConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	kind := poker.KindOf(err)
	if kind == "" {
		kind = "Internal"
	}
	c.JSON(status, gin.H{"kind": string(kind), "error": err.Error()})
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req struct {
		ID      string `json:"id"`
		Name    string `json:"name" binding:"required"`
		Role    string `json:"role"`
		Balance int64  `json:"balance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u := &poker.User{ID: req.ID, Name: req.Name, Role: poker.Role(req.Role), Balance: req.Balance}
	if err := s.CreateUser(c.Request.Context(), u); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) handleCreateTable(c *gin.Context) {
	var req struct {
		Name             string `json:"name" binding:"required"`
		SmallBlind       int64  `json:"smallBlind" binding:"required"`
		BigBlind         int64  `json:"bigBlind" binding:"required"`
		MinBuyIn         int64  `json:"minBuyIn" binding:"required"`
		MaxBuyIn         int64  `json:"maxBuyIn" binding:"required"`
		MaxSeats         int    `json:"maxSeats" binding:"required"`
		BlindStepSeconds int64  `json:"blindStepSeconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tbl, err := s.CreateTable(c.Request.Context(), callerID(c), TableParams{
		Name:             req.Name,
		SmallBlind:       req.SmallBlind,
		BigBlind:         req.BigBlind,
		MinBuyIn:         req.MinBuyIn,
		MaxBuyIn:         req.MaxBuyIn,
		MaxSeats:         req.MaxSeats,
		BlindStepSeconds: req.BlindStepSeconds,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tbl)
}

func (s *Server) handleListTables(c *gin.Context) {
	ids, err := s.ListTables(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": ids})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := s.Snapshot(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleEvents(c *gin.Context) {
	after, _ := strconv.ParseInt(c.Query("after"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	evs, err := s.EventsSince(c.Request.Context(), c.Param("id"), after, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

func (s *Server) handleJoin(c *gin.Context) {
	var req struct {
		BuyIn int64 `json:"buyIn" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seat, err := s.JoinTable(c.Request.Context(), c.Param("id"), callerID(c), req.BuyIn)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, seat)
}

func (s *Server) handleLeave(c *gin.Context) {
	if err := s.LeaveTable(c.Request.Context(), c.Param("id"), callerID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleKick(c *gin.Context) {
	var req struct {
		SeatID string `json:"seatId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.RemovePlayer(c.Request.Context(), c.Param("id"), callerID(c), req.SeatID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStartHand(c *gin.Context) {
	game, err := s.StartHand(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gameId": game.ID})
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.ResetTable(c.Request.Context(), c.Param("id"), callerID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAction(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required"`
		Amount int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.PlayerAction(c.Request.Context(), c.Param("id"), callerID(c), poker.BetAction(req.Action), req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDealCard(c *gin.Context) {
	var req struct {
		Rank string `json:"rank"`
		Suit string `json:"suit"`
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var card cards.Card
	var err error
	if req.Code != "" {
		card, err = cards.Parse(req.Code)
	} else {
		card, err = cards.Make(req.Rank, req.Suit)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.DealCard(c.Request.Context(), c.Param("id"), callerID(c), card); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRegisterDevice(c *gin.Context) {
	var req struct {
		Serial  string `json:"serial" binding:"required"`
		TableID string `json:"tableId" binding:"required"`
		Kind    string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dev := &poker.Device{Serial: req.Serial, TableID: req.TableID, Kind: req.Kind}
	if err := s.RegisterDevice(c.Request.Context(), callerID(c), dev); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dev)
}
