package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/hooks"
)

type consolidateRequest struct {
	Async bool `json:"async"`
}

func (s *Server) consolidate(c *gin.Context) {
	bankName := c.Param("bank")
	var req consolidateRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	bank, err := s.app.DB.GetBankByName(bankName)
	if err != nil {
		NotFoundError(c, "bank not found: "+bankName)
		return
	}

	ctx := c.Request.Context()
	if err := s.app.Hooks.RunAuthorize(ctx, hooks.OpConsolidate, bank.ID); err != nil {
		UnauthorizedError(c, err.Error())
		return
	}

	if req.Async {
		result, err := s.app.AsyncOps.Submit(ctx, bank.ID, "consolidation", func(jobCtx context.Context) (map[string]any, error) {
			summary, err := s.app.Consolidate.ConsolidateBank(jobCtx, bank.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"groups_considered": summary.GroupsConsidered,
				"created":           summary.Created,
				"updated":           summary.Updated,
				"merged":            summary.Merged,
				"skipped":           summary.Skipped,
			}, nil
		}, nil, true)
		if err != nil {
			InternalError(c, "failed to submit consolidation: "+err.Error())
			return
		}
		CreatedResponse(c, "consolidation submitted", gin.H{"operation_id": result.OperationID, "deduplicated": result.Deduplicated})
		return
	}

	summary, err := s.app.Consolidate.ConsolidateBank(ctx, bank.ID)
	s.app.Hooks.RunOnComplete(ctx, hooks.OpConsolidate, bank.ID, summary, err)
	if err != nil {
		InternalError(c, "failed to consolidate: "+err.Error())
		return
	}
	SuccessResponse(c, "consolidated", summary)
}
