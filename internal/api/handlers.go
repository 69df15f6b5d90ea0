package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

// Error codes returned in ErrorResponse.
const (
	codeBadRequest = "bad_request"
	codeInternal   = "internal_error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failure.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString("request_id"),
	}})
}

// dateLayout is the plain calendar date accepted by the date parameter.
const dateLayout = "2006-01-02"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleInsights serves GET /api/v1/insights?style=&date=. style defaults to
// day-half-hourly; date is YYYY-MM-DD or RFC3339 and defaults to the latest reading.
func (s *Server) handleInsights(c *gin.Context) {
	style, err := consumption.ParseStyle(c.DefaultQuery("style", consumption.DayHalfHourly.String()))
	if err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	reference, err := s.parseDate(c.Query("date"))
	if err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	rep, err := s.service.Insights(c.Request.Context(), style, reference)
	if err != nil {
		s.fail(c, "failed to generate insights", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleTariff(c *gin.Context) {
	summary, err := s.service.Tariff(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, tariff.ErrInvalidCode) {
			writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		s.fail(c, "failed to describe tariff", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) fail(c *gin.Context, message string, err error) {
	s.logger.Error(message,
		zap.Error(err),
		zap.String("request_id", c.GetString("request_id")))
	writeError(c, http.StatusInternalServerError, codeInternal, message+": "+err.Error())
}

func (s *Server) parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, s.location); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", value)
	}
	return t, nil
}
