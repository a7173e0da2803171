package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/mentalmodel"
	"github.com/memoryengine/memoryengine/internal/storage"
)

func toModelData(m *storage.MentalModel) gin.H {
	return gin.H{
		"id":                m.ID,
		"bank_id":           m.BankID,
		"name":              m.Name,
		"source_query":      m.SourceQuery,
		"content":           m.Content,
		"tags":              m.Tags,
		"auto_refresh":      m.AutoRefresh,
		"last_refreshed_at": m.LastRefreshedAt,
	}
}

type createModelRequest struct {
	Name        string   `json:"name" binding:"required"`
	SourceQuery string   `json:"source_query" binding:"required"`
	Tags        []string `json:"tags"`
	AutoRefresh bool     `json:"auto_refresh"`
}

func (s *Server) createModel(c *gin.Context) {
	bankName := c.Param("bank")
	var req createModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	bank, err := s.app.DB.GetBankByName(bankName)
	if err != nil {
		NotFoundError(c, "bank not found: "+bankName)
		return
	}

	m, err := s.app.MentalModels.Create(c.Request.Context(), mentalmodel.CreateOptions{
		BankID:      bank.ID,
		Name:        req.Name,
		SourceQuery: req.SourceQuery,
		Tags:        req.Tags,
		AutoRefresh: req.AutoRefresh,
	})
	if err != nil {
		InternalError(c, "failed to create model: "+err.Error())
		return
	}
	CreatedResponse(c, "mental model created", toModelData(m))
}

func (s *Server) refreshModel(c *gin.Context) {
	id := c.Param("id")
	if err := s.app.MentalModels.Refresh(c.Request.Context(), id); err != nil {
		InternalError(c, "failed to refresh model: "+err.Error())
		return
	}
	m, err := s.app.DB.GetMentalModelByID(id)
	if err != nil {
		NotFoundError(c, "model not found: "+id)
		return
	}
	SuccessResponse(c, "mental model refreshed", toModelData(m))
}

func (s *Server) listModels(c *gin.Context) {
	bankName := c.Param("bank")
	bank, err := s.app.DB.GetBankByName(bankName)
	if err != nil {
		NotFoundError(c, "bank not found: "+bankName)
		return
	}
	models, err := s.app.DB.ListMentalModelsByBank(bank.ID)
	if err != nil {
		InternalError(c, "failed to list models: "+err.Error())
		return
	}
	out := make([]gin.H, len(models))
	for i, m := range models {
		out[i] = toModelData(m)
	}
	SuccessResponse(c, "mental models listed", out)
}
