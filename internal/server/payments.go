package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
)

// Provider deliveries are small JSON documents.
const maxWebhookBytes = 1 << 20

func (s *Server) RecordPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Method    string `json:"method"`
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payment, err := s.paymentSvc.RecordPayment(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		OrderID:   id,
		Method:    strings.TrimSpace(req.Method),
		Amount:    req.Amount,
		Reference: strings.TrimSpace(req.Reference),
		Actor:     currentActor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": payment})
}

func (s *Server) InitializePayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Method   string `json:"method"`
		Provider string `json:"provider"`
		Amount   int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.InitializeCustomerPayment(c.Request.Context(), paymentdomain.InitializeRequest{
		OrderID:  id,
		Method:   strings.TrimSpace(req.Method),
		Provider: strings.TrimSpace(req.Provider),
		Amount:   req.Amount,
		Actor:    currentActor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ConfirmPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		ProviderPaymentID string `json:"provider_payment_id"`
		Signature         string `json:"signature"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payment, err := s.paymentSvc.ConfirmCustomerPayment(c.Request.Context(), paymentdomain.ConfirmRequest{
		PaymentID:         id,
		ProviderPaymentID: strings.TrimSpace(req.ProviderPaymentID),
		Signature:         strings.TrimSpace(req.Signature),
		Actor:             currentActor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) ListOrderPayments(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	payments, err := s.paymentSvc.ListForOrder(c.Request.Context(), id, currentActor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	payment, err := s.paymentSvc.Get(c.Request.Context(), id, currentActor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	pdf, err := s.paymentSvc.Receipt(c.Request.Context(), id, currentActor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, id.String()))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhooks.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
