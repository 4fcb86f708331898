package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/actor"
	assignmentdomain "github.com/smallbiznis/fieldops/internal/assignment/domain"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
)

type createOrderRequest struct {
	CustomerID      string                         `json:"customer_id"`
	AddressID       string                         `json:"address_id"`
	Customer        orderdomain.CustomerSnapshot   `json:"customer"`
	Services        []orderdomain.RequestedService `json:"services"`
	EstimatedCost   int64                          `json:"estimated_cost"`
	ScheduledAt     *time.Time                     `json:"scheduled_at"`
	TimeWindowStart *time.Time                     `json:"time_window_start"`
	TimeWindowEnd   *time.Time                     `json:"time_window_end"`
	Notes           string                         `json:"notes"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	s.createOrder(c, currentActor(c))
}

// CreatePublicOrder books through the unauthenticated channel. Saved
// customers and addresses are never resolved here, even for signed-in callers.
func (s *Server) CreatePublicOrder(c *gin.Context) {
	s.createOrder(c, actor.Actor{Role: actor.RolePublic})
}

func (s *Server) createOrder(c *gin.Context, a actor.Actor) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := parseOptionalSnowflakeID(req.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}
	addressID, err := parseOptionalSnowflakeID(req.AddressID)
	if err != nil {
		AbortWithError(c, newValidationError("address_id", "invalid_address_id", "invalid address_id"))
		return
	}
	if a.Role == actor.RolePublic {
		customerID, addressID = nil, nil
	}

	order, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateRequest{
		Actor:           a,
		CustomerID:      customerID,
		AddressID:       addressID,
		Customer:        req.Customer,
		Services:        req.Services,
		EstimatedCost:   req.EstimatedCost,
		ScheduledAt:     req.ScheduledAt,
		TimeWindowStart: req.TimeWindowStart,
		TimeWindowEnd:   req.TimeWindowEnd,
		Notes:           req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status       string `form:"status"`
		From         string `form:"from"`
		To           string `form:"to"`
		TechnicianID string `form:"technician_id"`
		CustomerID   string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	technicianID, err := parseOptionalSnowflakeID(query.TechnicianID)
	if err != nil {
		AbortWithError(c, newValidationError("technician_id", "invalid_technician_id", "invalid technician_id"))
		return
	}
	customerID, err := parseOptionalSnowflakeID(query.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}

	// Non-admin callers only ever see their own orders.
	a := currentActor(c)
	switch a.Role {
	case actor.RoleCustomer:
		customerID = a.IDPtr()
	case actor.RoleTechnician:
		technicianID = a.IDPtr()
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		Pagination:   query.Pagination,
		Status:       strings.TrimSpace(query.Status),
		From:         from,
		To:           to,
		TechnicianID: technicianID,
		CustomerID:   customerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetOrder(c *gin.Context) {
	order, err := s.visibleOrder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListOrderHistory(c *gin.Context) {
	order, err := s.visibleOrder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries, err := s.orderSvc.History(c.Request.Context(), order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) AddOrderNote(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entry, err := s.orderSvc.AddHistoryNote(c.Request.Context(), id, req.Note, currentActor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (s *Server) RescheduleOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req struct {
		Start *time.Time `json:"start"`
		End   *time.Time `json:"end"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Start == nil || req.End == nil {
		AbortWithError(c, orderdomain.ErrInvalidSchedule)
		return
	}

	order, err := s.orderSvc.Reschedule(c.Request.Context(), orderdomain.RescheduleRequest{
		OrderID: id,
		Start:   *req.Start,
		End:     *req.End,
		Actor:   currentActor(c),
	})
	s.respondOrder(c, order, err)
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req struct {
		Status      string   `json:"status"`
		Reason      string   `json:"reason"`
		Attachments []string `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.UpdateStatus(c.Request.Context(), orderdomain.UpdateStatusRequest{
		OrderID:     id,
		Status:      strings.TrimSpace(req.Status),
		Reason:      req.Reason,
		Attachments: req.Attachments,
		Actor:       currentActor(c),
	})
	s.respondOrder(c, order, err)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RequestOrderCancellation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.RequestCancellation(c.Request.Context(), id, req.Reason, currentActor(c))
	s.respondOrder(c, order, err)
}

func (s *Server) CancelOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Cancel(c.Request.Context(), id, req.Reason, currentActor(c))
	s.respondOrder(c, order, err)
}

type decisionRequest struct {
	Note string `json:"note"`
}

func (s *Server) ApproveAdditionalItems(c *gin.Context) {
	req, ok := s.bindDecision(c)
	if !ok {
		return
	}
	order, err := s.orderSvc.ApproveAdditionalItems(c.Request.Context(), req)
	s.respondOrder(c, order, err)
}

func (s *Server) RejectAdditionalItems(c *gin.Context) {
	req, ok := s.bindDecision(c)
	if !ok {
		return
	}
	order, err := s.orderSvc.RejectAdditionalItems(c.Request.Context(), req)
	s.respondOrder(c, order, err)
}

func (s *Server) bindDecision(c *gin.Context) (orderdomain.DecisionRequest, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return orderdomain.DecisionRequest{}, false
	}
	var body decisionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return orderdomain.DecisionRequest{}, false
		}
	}
	return orderdomain.DecisionRequest{OrderID: id, Note: body.Note, Actor: currentActor(c)}, true
}

func (s *Server) OverrideOrderPaymentStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.OverridePaymentStatus(c.Request.Context(), id, strings.TrimSpace(req.PaymentStatus), currentActor(c))
	s.respondOrder(c, order, err)
}

func (s *Server) RateOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req struct {
		Score   int    `json:"score"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Rate(c.Request.Context(), orderdomain.RateRequest{
		OrderID: id,
		Score:   req.Score,
		Comment: req.Comment,
		Actor:   currentActor(c),
	})
	s.respondOrder(c, order, err)
}

func (s *Server) UploadOrderMedia(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_file", "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_file", "file is unreadable"))
		return
	}
	defer file.Close()

	order, err := s.orderSvc.AddMedia(c.Request.Context(), orderdomain.AddMediaRequest{
		OrderID:     id,
		Kind:        strings.TrimSpace(c.PostForm("kind")),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Actor:       currentActor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) GetOrderMedia(c *gin.Context) {
	order, err := s.visibleOrder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	index, err := pathIndex(c, "index")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	url, err := s.orderSvc.MediaURL(c.Request.Context(), order.ID, index)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
}

func (s *Server) RemoveOrderMedia(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	index, err := pathIndex(c, "index")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.RemoveMedia(c.Request.Context(), id, index, currentActor(c))
	s.respondOrder(c, order, err)
}

func (s *Server) AssignOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req assignmentdomain.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OrderID = id
	req.Actor = currentActor(c)

	result, err := s.assignmentSvc.Assign(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetOrderJobCard(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	card, err := s.jobCardSvc.GetByOrder(c.Request.Context(), id, currentActor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": card})
}

// visibleOrder loads the :id order and checks the caller may read it.
func (s *Server) visibleOrder(c *gin.Context) (*orderdomain.Order, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if !order.VisibleTo(currentActor(c)) {
		return nil, orderdomain.ErrForbidden
	}
	return order, nil
}

func (s *Server) respondOrder(c *gin.Context, order *orderdomain.Order, err error) {
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}
