package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/hooks"
	"github.com/memoryengine/memoryengine/internal/storage"
)

// bankData is the wire shape for a bank.
type bankData struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Disposition storage.Disposition `json:"disposition"`
	Mission     string              `json:"mission"`
	CreatedAt   int64               `json:"created_at"`
	UpdatedAt   int64               `json:"updated_at"`
}

func toBankData(b *storage.Bank) bankData {
	return bankData{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Disposition: b.Disposition,
		Mission:     b.Mission,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type createBankRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Mission     string `json:"mission"`
}

func (s *Server) createBank(c *gin.Context) {
	var req createBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := s.app.Hooks.RunAuthorize(ctx, hooks.OpCreateBank, ""); err != nil {
		UnauthorizedError(c, err.Error())
		return
	}

	b, err := s.app.CreateBank(req.Name, req.Description, req.Mission)
	s.app.Hooks.RunOnComplete(ctx, hooks.OpCreateBank, "", b, err)
	if err != nil {
		InternalError(c, "failed to create bank: "+err.Error())
		return
	}

	CreatedResponse(c, "bank created", toBankData(b))
}

func (s *Server) listBanks(c *gin.Context) {
	banks, err := s.app.DB.ListBanks()
	if err != nil {
		InternalError(c, "failed to list banks: "+err.Error())
		return
	}
	out := make([]bankData, len(banks))
	for i, b := range banks {
		out[i] = toBankData(b)
	}
	SuccessResponse(c, "banks listed", out)
}

func (s *Server) deleteBank(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	b, err := s.app.DB.GetBankByName(name)
	if err != nil {
		NotFoundError(c, "bank not found: "+name)
		return
	}

	if err := s.app.Hooks.RunAuthorize(ctx, hooks.OpDeleteBank, b.ID); err != nil {
		UnauthorizedError(c, err.Error())
		return
	}

	for _, ns := range []string{"memory", "entity", "mental-model", "visual"} {
		if err := s.app.DB.DeleteVectorsForBank(ns, b.ID); err != nil {
			InternalError(c, "failed to delete vectors: "+err.Error())
			return
		}
	}
	err = s.app.DB.DeleteBankByID(b.ID)
	s.app.Hooks.RunOnComplete(ctx, hooks.OpDeleteBank, b.ID, nil, err)
	if err != nil {
		InternalError(c, "failed to delete bank: "+err.Error())
		return
	}
	s.app.Working.Clear(b.ID)

	SuccessResponse(c, "bank deleted", gin.H{"name": name, "status": "deleted"})
}
