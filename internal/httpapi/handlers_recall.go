package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/hooks"
	"github.com/memoryengine/memoryengine/internal/recall"
)

type timeRangeRequest struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type recallRequest struct {
	Query               string            `json:"query" binding:"required"`
	Methods             []string          `json:"methods"`
	Limit               int               `json:"limit"`
	TokenBudget         int               `json:"token_budget"`
	FactType            string            `json:"fact_type"`
	FactTypes           []string          `json:"fact_types"`
	Tags                []string          `json:"tags"`
	TagsMatch           string            `json:"tags_match"`
	ExcludeConsolidated bool              `json:"exclude_consolidated"`
	MinConfidence       float64           `json:"min_confidence"`
	ValidAtMillis       *int64            `json:"valid_at_millis"`
	TimeRange           *timeRangeRequest `json:"time_range"`
	SeedMemoryIDs       []string          `json:"seed_memory_ids"`
	MaxEntityFrequency  int               `json:"max_entity_frequency"`
}

type hitData struct {
	Unit        memoryData `json:"unit"`
	FusedScore  float64    `json:"fused_score"`
	EntityNames []string   `json:"entity_names,omitempty"`
}

func (s *Server) recall(c *gin.Context) {
	bankName := c.Param("bank")
	var req recallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	bank, err := s.app.DB.GetBankByName(bankName)
	if err != nil {
		NotFoundError(c, "bank not found: "+bankName)
		return
	}

	ctx := c.Request.Context()
	if err := s.app.Hooks.RunAuthorize(ctx, hooks.OpRecall, bank.ID); err != nil {
		UnauthorizedError(c, err.Error())
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	tokenBudget := req.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = recall.DefaultTokenBudget
	}

	var timeRange *recall.TimeRange
	if req.TimeRange != nil {
		timeRange = &recall.TimeRange{Start: req.TimeRange.Start, End: req.TimeRange.End}
	}

	hits, err := s.app.Recall.Recall(ctx, recall.Options{
		BankID:              bank.ID,
		Query:               req.Query,
		Methods:             req.Methods,
		Limit:               limit,
		TokenBudget:         tokenBudget,
		SeedMemoryIDs:       req.SeedMemoryIDs,
		MaxEntityFrequency:  req.MaxEntityFrequency,
		Filters: recall.Filters{
			FactType:            req.FactType,
			FactTypes:           req.FactTypes,
			Tags:                req.Tags,
			TagsMatch:           req.TagsMatch,
			ExcludeConsolidated: req.ExcludeConsolidated,
			MinConfidence:       req.MinConfidence,
			ValidAtMillis:       req.ValidAtMillis,
			TimeRange:           timeRange,
		},
	})
	s.app.Hooks.RunOnComplete(ctx, hooks.OpRecall, bank.ID, hits, err)
	if err != nil {
		InternalError(c, "failed to recall: "+err.Error())
		return
	}

	out := make([]hitData, len(hits))
	var ids []string
	for i, h := range hits {
		out[i] = hitData{Unit: toMemoryData(h.Unit), FusedScore: h.FusedScore, EntityNames: h.EntityNames}
		ids = append(ids, h.Unit.ID)
	}
	s.app.Working.Record(bank.ID, ids)

	SuccessResponse(c, "recalled", out)
}
