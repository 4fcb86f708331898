package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
)

func (s *Server) GetJobCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	card, err := s.jobCardSvc.Get(c.Request.Context(), id, currentActor(c))
	s.respondJobCard(c, card, err)
}

func (s *Server) CheckIn(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Note      string   `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		AbortWithError(c, jobcarddomain.ErrInvalidLocation)
		return
	}

	card, err := s.jobCardSvc.CheckIn(c.Request.Context(), jobcarddomain.CheckInRequest{
		JobCardID: id,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Note:      req.Note,
		Actor:     currentActor(c),
	})
	s.respondJobCard(c, card, err)
}

func (s *Server) Checkout(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		OTP string `json:"otp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	card, err := s.jobCardSvc.Checkout(c.Request.Context(), jobcarddomain.CheckoutRequest{
		JobCardID: id,
		OTP:       strings.TrimSpace(req.OTP),
		Actor:     currentActor(c),
	})
	s.respondJobCard(c, card, err)
}

func (s *Server) AddExtraWork(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Items []jobcarddomain.ExtraWorkInput `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	card, err := s.jobCardSvc.AddExtraWork(c.Request.Context(), jobcarddomain.AddExtraWorkRequest{
		JobCardID: id,
		Items:     req.Items,
		Actor:     currentActor(c),
	})
	s.respondJobCard(c, card, err)
}

func (s *Server) AddSpareParts(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Parts []jobcarddomain.SparePartInput `json:"parts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	card, err := s.jobCardSvc.AddSpareParts(c.Request.Context(), jobcarddomain.AddSparePartsRequest{
		JobCardID: id,
		Parts:     req.Parts,
		Actor:     currentActor(c),
	})
	s.respondJobCard(c, card, err)
}

func (s *Server) RemoveExtraWork(c *gin.Context) {
	req, ok := bindRemoveLine(c)
	if !ok {
		return
	}
	card, err := s.jobCardSvc.RemoveExtraWork(c.Request.Context(), req)
	s.respondJobCard(c, card, err)
}

func (s *Server) RemoveSparePart(c *gin.Context) {
	req, ok := bindRemoveLine(c)
	if !ok {
		return
	}
	card, err := s.jobCardSvc.RemoveSparePart(c.Request.Context(), req)
	s.respondJobCard(c, card, err)
}

func bindRemoveLine(c *gin.Context) (jobcarddomain.RemoveLineRequest, bool) {
	id, ok := idParam(c)
	if !ok {
		return jobcarddomain.RemoveLineRequest{}, false
	}
	index, err := pathIndex(c, "index")
	if err != nil {
		AbortWithError(c, err)
		return jobcarddomain.RemoveLineRequest{}, false
	}
	return jobcarddomain.RemoveLineRequest{JobCardID: id, Index: index, Actor: currentActor(c)}, true
}

func (s *Server) UpdateEstimate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		EstimateAmount *int64 `json:"estimate_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.EstimateAmount == nil {
		AbortWithError(c, jobcarddomain.ErrInvalidAmount)
		return
	}

	card, err := s.jobCardSvc.UpdateEstimate(c.Request.Context(), jobcarddomain.UpdateEstimateRequest{
		JobCardID:      id,
		EstimateAmount: *req.EstimateAmount,
		Actor:          currentActor(c),
	})
	s.respondJobCard(c, card, err)
}

func (s *Server) CompleteJob(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Resolution    string `json:"resolution"`
		PaymentStatus string `json:"payment_status"`
		FollowUpNote  string `json:"follow_up_note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	card, err := s.jobCardSvc.CompleteJob(c.Request.Context(), jobcarddomain.CompleteRequest{
		JobCardID:     id,
		Resolution:    strings.TrimSpace(req.Resolution),
		PaymentStatus: strings.TrimSpace(req.PaymentStatus),
		FollowUpNote:  req.FollowUpNote,
		Actor:         currentActor(c),
	})
	s.respondJobCard(c, card, err)
}

func (s *Server) respondJobCard(c *gin.Context, card *jobcarddomain.JobCard, err error) {
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": card})
}
