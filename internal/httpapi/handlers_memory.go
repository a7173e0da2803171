package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/hooks"
	"github.com/memoryengine/memoryengine/internal/retain"
	"github.com/memoryengine/memoryengine/internal/storage"
)

type memoryData struct {
	ID             string   `json:"id"`
	BankID         string   `json:"bank_id"`
	Content        string   `json:"content"`
	FactType       string   `json:"fact_type"`
	Confidence     float64  `json:"confidence"`
	Tags           []string `json:"tags"`
	ProofCount     int      `json:"proof_count"`
	ConsolidatedAt *int64   `json:"consolidated_at,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

func toMemoryData(m *storage.MemoryUnit) memoryData {
	return memoryData{
		ID:             m.ID,
		BankID:         m.BankID,
		Content:        m.Content,
		FactType:       m.FactType,
		Confidence:     m.Confidence,
		Tags:           m.Tags,
		ProofCount:     m.ProofCount,
		ConsolidatedAt: m.ConsolidatedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type rememberRequest struct {
	Content          string         `json:"content" binding:"required"`
	FactType         string         `json:"fact_type"`
	Tags             []string       `json:"tags"`
	DocumentID       *string        `json:"document_id"`
	SkipExtraction   bool           `json:"skip_extraction"`
	Mode             string         `json:"mode"`
	CustomGuidelines string         `json:"custom_guidelines"`
	Metadata         map[string]any `json:"metadata"`
	DedupThreshold   float64        `json:"dedup_threshold"`
	Consolidate      bool           `json:"consolidate"`
}

func (s *Server) remember(c *gin.Context) {
	bankName := c.Param("bank")
	var req rememberRequest
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
	if err := s.app.Hooks.RunAuthorize(ctx, hooks.OpRetain, bank.ID); err != nil {
		UnauthorizedError(c, err.Error())
		return
	}
	if err := s.app.Hooks.RunValidate(ctx, hooks.OpRetain, req.Content); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	results, summary, err := s.app.Retain(ctx, retain.Options{
		BankID:           bank.ID,
		Content:          req.Content,
		FactType:         req.FactType,
		Tags:             req.Tags,
		DocumentID:       req.DocumentID,
		SkipExtraction:   req.SkipExtraction,
		Mode:             req.Mode,
		CustomGuidelines: req.CustomGuidelines,
		Metadata:         req.Metadata,
		DedupThreshold:   req.DedupThreshold,
		Consolidate:      req.Consolidate,
	})
	s.app.Hooks.RunOnComplete(ctx, hooks.OpRetain, bank.ID, results, err)
	if err != nil {
		InternalError(c, "failed to remember: "+err.Error())
		return
	}

	out := make([]gin.H, len(results))
	var ids []string
	for i, r := range results {
		out[i] = gin.H{
			"unit":     toMemoryData(r.Unit),
			"deduped":  r.Deduped,
			"entities": r.EntityIDs,
			"links":    r.LinksMade,
		}
		ids = append(ids, r.Unit.ID)
	}
	s.app.Working.Record(bank.ID, ids)

	resp := gin.H{"units": out}
	if summary != nil {
		resp["consolidation"] = summary
	}
	CreatedResponse(c, "remembered", resp)
}

func (s *Server) getMemory(c *gin.Context) {
	id := c.Param("id")
	u, err := s.app.DB.GetMemoryUnitByID(id)
	if err != nil {
		NotFoundError(c, "memory not found: "+id)
		return
	}
	entityIDs, _ := s.app.DB.EntityIDsForMemory(u.ID)
	SuccessResponse(c, "memory retrieved", gin.H{"unit": toMemoryData(u), "entities": entityIDs})
}

func (s *Server) listMemories(c *gin.Context) {
	bankName := c.Param("bank")
	bank, err := s.app.DB.GetBankByName(bankName)
	if err != nil {
		NotFoundError(c, "bank not found: "+bankName)
		return
	}

	limit := clampLimit(parseIntQuery(c, "limit", 50), 50, 1000)
	offset := parseIntQuery(c, "offset", 0)
	factType := c.Query("fact_type")

	units, err := s.app.DB.ListMemoryUnitsByBank(bank.ID, storage.MemoryUnitFilter{
		FactType: factType,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		InternalError(c, "failed to list memories: "+err.Error())
		return
	}

	out := make([]memoryData, len(units))
	for i, u := range units {
		out[i] = toMemoryData(u)
	}
	SuccessResponse(c, "memories listed", out)
}

func (s *Server) forget(c *gin.Context) {
	id := c.Param("id")
	if err := s.app.DB.DeleteMemoryUnitByID(id, s.app.MemoryVectors); err != nil {
		InternalError(c, "failed to forget: "+err.Error())
		return
	}
	SuccessResponse(c, "memory forgotten", gin.H{"id": id, "status": "deleted"})
}
