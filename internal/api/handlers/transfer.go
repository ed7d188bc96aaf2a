package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "saga-orchestrator/internal/errors"
	"saga-orchestrator/internal/logging"
)

// MakeCreateTransferHandler accepts a transfer request and returns
// 202 Accepted once the saga and its triggering outbox row are
// durably created — the transfer itself runs asynchronously via the
// outbox worker. Grounded on the teacher's
// internal/api/handlers/transfer.go closure-over-container shape.
func MakeCreateTransferHandler(container HandlerDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			FromUserId int   `json:"FromUserId" binding:"required"`
			ToUserId   int   `json:"ToUserId" binding:"required"`
			Amount     int64 `json:"Amount"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apierrors.NewValidationError("invalid request format")
			logging.Warn("invalid JSON in transfer request", map[string]interface{}{
				"error": err.Error(),
				"ip":    c.ClientIP(),
			})
			c.JSON(apiErr.Status, apiErr)
			return
		}

		if req.Amount <= 0 {
			apiErr := apierrors.NewValidationError("amount must be positive")
			c.JSON(apiErr.Status, apiErr)
			return
		}

		if req.FromUserId == req.ToUserId {
			apiErr := apierrors.NewSelfTransferError()
			logging.Warn("attempted self-transfer", map[string]interface{}{
				"account_id": req.FromUserId,
				"ip":         c.ClientIP(),
			})
			c.JSON(apiErr.Status, apiErr)
			return
		}

		sagaID, err := container.CreateTransferSaga(c.Request.Context(), req.FromUserId, req.ToUserId, req.Amount)
		if err != nil {
			logging.Error("failed to create transfer saga", err, map[string]interface{}{
				"from": req.FromUserId, "to": req.ToUserId, "amount": req.Amount,
			})
			apiErr := apierrors.NewInternalServerError()
			c.JSON(apiErr.Status, apiErr)
			return
		}

		c.Header("Location", "/sagas/"+sagaID)
		c.JSON(http.StatusAccepted, gin.H{
			"SagaId": sagaID,
			"Status": "Queued",
		})
	}
}

// MakeGetSagaStatusHandler reports a saga's current state by id.
func MakeGetSagaStatusHandler(container HandlerDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		sagaID := c.Param("id")

		status, found, err := container.GetSagaStatus(c.Request.Context(), sagaID)
		if err != nil {
			logging.Error("failed to load saga status", err, map[string]interface{}{"saga_id": sagaID})
			apiErr := apierrors.NewInternalServerError()
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if !found {
			apiErr := apierrors.NewNotFoundError("saga")
			c.JSON(apiErr.Status, apiErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"SagaId":      status.SagaID,
			"State":       status.State,
			"CurrentStep": status.CurrentStep,
			"Errors":      status.Errors,
		})
	}
}
