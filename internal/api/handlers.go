package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ark-trading-engine/internal/auth"
	"ark-trading-engine/internal/cache"
	"ark-trading-engine/internal/database"
	"ark-trading-engine/internal/pipeline"
	"ark-trading-engine/internal/trade"
)

// handleLogin verifies the operator credentials and issues a token
func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "username and password are required")
		return
	}

	if req.Username != s.credentials.Username ||
		!s.passwords.VerifyPassword(req.Password, s.credentials.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   auth.ErrInvalidCredentials.Code,
			"message": auth.ErrInvalidCredentials.Message,
		})
		return
	}

	token, err := s.jwtManager.GenerateAccessToken(auth.UserClaims{
		UserID:   s.credentials.Username,
		Username: s.credentials.Username,
		IsAdmin:  true,
	})
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, auth.LoginResponse{
		AccessToken: token,
		ExpiresIn:   s.jwtManager.GetAccessTokenDuration(),
		TokenType:   "Bearer",
	})
}

// handleEvaluateSetup runs one trade setup through the pipeline
func (s *Server) handleEvaluateSetup(c *gin.Context) {
	var setup trade.Setup
	if err := c.ShouldBindJSON(&setup); err != nil {
		errorResponse(c, http.StatusBadRequest, "request body must be a JSON trade setup")
		return
	}

	result, err := s.pipe.Process(c.Request.Context(), setup)
	if err != nil {
		s.logger.Error().Err(err).Msg("Pipeline processing failed")
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	s.persistResult(c.Request.Context(), result)

	successResponse(c, result)
}

// handleListPatterns returns a summary of every loaded pattern
func (s *Server) handleListPatterns(c *gin.Context) {
	defs := s.library.All()
	summaries := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		summaries = append(summaries, gin.H{
			"pattern_id":        def.PatternID,
			"name":              def.Name,
			"direction":         def.Direction,
			"category":          def.Category,
			"required_rules":    len(def.Rules.Required),
			"preferred_rules":   len(def.Rules.Preferred),
			"confidence_weight": def.ConfidenceWeight,
		})
	}
	successResponse(c, summaries)
}

// handleGetPattern returns one full pattern definition
func (s *Server) handleGetPattern(c *gin.Context) {
	def, ok := s.library.Get(c.Param("id"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "pattern not found")
		return
	}
	successResponse(c, def)
}

// handleRecentSignals lists persisted signals, newest first
func (s *Server) handleRecentSignals(c *gin.Context) {
	if s.db == nil {
		errorResponse(c, http.StatusNotImplemented, "signal persistence is disabled")
		return
	}

	symbol := c.Query("symbol")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	// Cache only the default query shape
	cacheable := s.signalCache != nil && limit == 50
	if cacheable {
		var cached []*database.SignalRecord
		if err := s.signalCache.GetJSON(c.Request.Context(), cache.RecentSignalsKey(symbol), &cached); err == nil {
			successResponse(c, cached)
			return
		}
	}

	records, err := s.db.GetRecentSignals(c.Request.Context(), symbol, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load recent signals")
		errorResponse(c, http.StatusInternalServerError, "failed to load signals")
		return
	}

	if cacheable {
		if err := s.signalCache.SetJSON(c.Request.Context(), cache.RecentSignalsKey(symbol), records, time.Minute); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to cache recent signals")
		}
	}

	successResponse(c, records)
}

// handleGetSignal fetches one signal by id, cache first
func (s *Server) handleGetSignal(c *gin.Context) {
	if s.db == nil {
		errorResponse(c, http.StatusNotImplemented, "signal persistence is disabled")
		return
	}

	id := c.Param("id")

	if s.signalCache != nil {
		var cached database.SignalRecord
		if err := s.signalCache.GetJSON(c.Request.Context(), cache.SignalKey(id), &cached); err == nil {
			successResponse(c, &cached)
			return
		}
	}

	record, err := s.db.GetSignal(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, http.StatusNotFound, "signal not found")
		return
	}

	if s.signalCache != nil {
		if err := s.signalCache.SetJSON(c.Request.Context(), cache.SignalKey(id), record, cache.DefaultSignalTTL); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to cache signal")
		}
	}

	successResponse(c, record)
}

// persistResult writes a pipeline result to the database and warms the
// cache. Persistence failures are logged, never surfaced to the caller;
// the evaluation already succeeded.
func (s *Server) persistResult(ctx context.Context, result *pipeline.Result) {
	if s.db == nil {
		return
	}

	record := &database.SignalRecord{
		ID:             result.ID,
		Symbol:         result.Setup.Symbol(),
		Direction:      result.Setup.Direction(),
		Pattern:        result.Pattern,
		Confidence:     result.Confidence,
		Status:         result.Status,
		RejectionStage: result.Stage,
		Reasons:        result.Reasons,
	}
	if result.Scores != nil {
		record.WeightedScore = result.Scores.WeightedTotal
		record.Grade = result.Scores.Grade
	}
	if result.Plan != nil {
		record.EntryPrice = result.Plan.Entry.Price
		record.StopPrice = result.Plan.Stop.Price
		record.Shares = result.Plan.Position.Shares
		record.RiskDollars = result.Plan.Risk.RiskDollars
		if data, err := json.Marshal(result.Plan); err == nil {
			record.Plan = data
		}
	}

	if err := s.db.CreateSignal(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("signal_id", result.ID).Msg("Failed to persist signal")
		return
	}

	if s.signalCache != nil {
		if err := s.signalCache.SetJSON(ctx, cache.SignalKey(record.ID), record, cache.DefaultSignalTTL); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to cache signal")
		}
		// Invalidate the recent lists this signal belongs to
		if err := s.signalCache.Delete(ctx, cache.RecentSignalsKey(record.Symbol)); err == nil {
			_ = s.signalCache.Delete(ctx, cache.RecentSignalsKey(""))
		}
	}
}
