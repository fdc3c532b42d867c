package controller

import (
	"context"
	"net/http"

	"codejudge/internal/judge/model"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// CompileService runs one compile-and-run attempt.
type CompileService interface {
	Start(ctx context.Context, req model.CompileRequest) (model.CompileResponse, error)
}

// JudgeController handles compile-and-run requests.
type JudgeController struct {
	svc CompileService
}

// NewJudgeController creates a new controller.
func NewJudgeController(svc CompileService) *JudgeController {
	return &JudgeController{svc: svc}
}

// CompileAndRun answers the bare wire result, not the response envelope.
func (h *JudgeController) CompileAndRun(c *gin.Context) {
	var req model.CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	result, err := h.svc.Start(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
