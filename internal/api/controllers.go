package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// defaultLimit/maxLimit bound every list endpoint's ?limit= query param,
// clamping pagination rather than trusting the caller.
const (
	defaultLimit = 100
	maxLimit     = 1000
)

func queryLimit(c *gin.Context) int {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.store.ListPositions(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) getOpenPositions(c *gin.Context) {
	positions, err := s.store.ListOpenPositions(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) getOrders(c *gin.Context) {
	orders, err := s.store.ListOrders(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getBacktestTrades(c *gin.Context) {
	trades, err := s.store.ListBacktestTrades(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getRiskStates(c *gin.Context) {
	states, err := s.store.ListRiskStates(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"risk_states": states})
}

func (s *Server) getDLQ(c *gin.Context) {
	count := int64(queryLimit(c))
	msgs, err := s.broker.ReadDLQ(c.Request.Context(), count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// setKillSwitch flips the KILL_SWITCH runtime flag the execution
// service's admission pipeline consults on every plan, writing through
// store.SetFlag.
func (s *Server) setKillSwitch(c *gin.Context) {
	var req struct {
		On bool `json:"on"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	value := "false"
	if req.On {
		value = "true"
	}
	if err := s.store.SetFlag(c.Request.Context(), "KILL_SWITCH", value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kill_switch": req.On})
}

// setFlag is a generic admin escape hatch for any other runtime_flags
// row an operator needs to toggle without a redeploy.
func (s *Server) setFlag(c *gin.Context) {
	name := c.Param("name")
	var req struct {
		Value string `json:"value"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if err := s.store.SetFlag(c.Request.Context(), name, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "value": req.Value})
}
