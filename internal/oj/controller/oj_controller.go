package controller

import (
	"context"

	"codejudge/internal/oj/loadbalance"
	"codejudge/internal/oj/model"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeService is the judge controller seen by the HTTP layer.
type JudgeService interface {
	Judge(ctx context.Context, number string, body []byte) ([]byte, error)
	GetQuestion(ctx context.Context, number string) (*model.Problem, error)
	ListQuestions(ctx context.Context) ([]model.ProblemSummary, error)
	RecoverMachines() int
	Machines() []loadbalance.MachineState
}

// OJController handles catalogue, judge and fleet admin requests.
type OJController struct {
	svc JudgeService
}

// NewOJController creates a new controller.
func NewOJController(svc JudgeService) *OJController {
	return &OJController{svc: svc}
}

// Register mounts the oj routes on r.
func (h *OJController) Register(r gin.IRouter) {
	r.GET("/all_questions", h.AllQuestions)
	r.GET("/questions/:number", h.Question)
	r.POST("/judge/:number", h.Judge)
	r.GET("/machines", h.Machines)
	r.POST("/machines/recover", h.RecoverMachines)
}

func (h *OJController) AllQuestions(c *gin.Context) {
	list, err := h.svc.ListQuestions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"questions": list})
}

func (h *OJController) Question(c *gin.Context) {
	p, err := h.svc.GetQuestion(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Judge relays the compile server's body unchanged on success.
func (h *OJController) Judge(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.InvalidParams, "read request body failed"))
		return
	}
	out, err := h.svc.Judge(c.Request.Context(), c.Param("number"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, out)
}

func (h *OJController) Machines(c *gin.Context) {
	response.Success(c, gin.H{"machines": h.svc.Machines()})
}

func (h *OJController) RecoverMachines(c *gin.Context) {
	n := h.svc.RecoverMachines()
	response.Success(c, gin.H{"recovered": n, "machines": h.svc.Machines()})
}
