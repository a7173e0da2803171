package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/asyncop"
	"github.com/memoryengine/memoryengine/internal/storage"
)

func toOperationData(op *storage.AsyncOperation) gin.H {
	return gin.H{
		"operation_id":    op.OperationID,
		"bank_id":         op.BankID,
		"operation_type":  op.OperationType,
		"status":          op.Status,
		"metadata":        op.Metadata,
		"error":           op.ErrorMessage,
		"result_metadata": op.ResultMetadata,
		"updated_at":      op.UpdatedAt,
	}
}

func (s *Server) operationStatus(c *gin.Context) {
	id := c.Param("id")
	op, err := s.app.AsyncOps.GetStatus(id)
	if err != nil {
		NotFoundError(c, "operation not found: "+id)
		return
	}
	SuccessResponse(c, "operation status", toOperationData(op))
}

func (s *Server) operationCancel(c *gin.Context) {
	id := c.Param("id")
	if err := s.app.AsyncOps.Cancel(id); err != nil {
		InternalError(c, "failed to cancel: "+err.Error())
		return
	}
	SuccessResponse(c, "cancellation requested", gin.H{"operation_id": id})
}

func (s *Server) operationList(c *gin.Context) {
	bankName := c.Param("bank")
	bank, err := s.app.DB.GetBankByName(bankName)
	if err != nil {
		NotFoundError(c, "bank not found: "+bankName)
		return
	}

	filter := asyncop.ListFilter{
		OperationType: c.Query("type"),
		Status:        c.Query("status"),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = offset
	}

	ops, err := s.app.AsyncOps.List(bank.ID, filter)
	if err != nil {
		InternalError(c, "failed to list operations: "+err.Error())
		return
	}
	out := make([]gin.H, len(ops))
	for i, op := range ops {
		out[i] = toOperationData(op)
	}
	SuccessResponse(c, "operations listed", out)
}
