package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	customerdomain "github.com/smallbiznis/fieldops/internal/customer/domain"
	techniciandomain "github.com/smallbiznis/fieldops/internal/technician/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
)

const defaultScheduleSpan = 7 * 24 * time.Hour

// -------- Technicians --------

func (s *Server) CreateTechnician(c *gin.Context) {
	var req techniciandomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tech, err := s.technicianSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tech})
}

func (s *Server) ListTechnicians(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	techs, err := s.technicianSvc.List(c.Request.Context(), techniciandomain.ListRequest{
		Active: active,
		Skill:  strings.TrimSpace(c.Query("skill")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": techs})
}

func (s *Server) GetTechnician(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	tech, err := s.technicianSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tech})
}

func (s *Server) SetTechnicianActive(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "active is required"))
		return
	}

	tech, err := s.technicianSvc.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tech})
}

// -------- Calendar --------

func (s *Server) GetTechnicianSchedule(c *gin.Context) {
	id, ok := s.calendarTechnician(c)
	if !ok {
		return
	}

	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	if from == nil {
		start := time.Now().UTC().Truncate(24 * time.Hour)
		from = &start
	}
	if to == nil {
		end := from.Add(defaultScheduleSpan)
		to = &end
	}

	items, err := s.calendarSvc.Schedule(c.Request.Context(), id, *from, *to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetTechnicianAvailability(c *gin.Context) {
	id, ok := s.calendarTechnician(c)
	if !ok {
		return
	}

	day, err := s.calendarSvc.Availability(c.Request.Context(), id, strings.TrimSpace(c.Query("date")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": day})
}

func (s *Server) SetWeeklyHours(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		DayOfWeek *int   `json:"day_of_week"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.DayOfWeek == nil {
		AbortWithError(c, calendardomain.ErrInvalidDayOfWeek)
		return
	}

	hours, err := s.calendarSvc.SetWeeklyHours(c.Request.Context(), calendardomain.SetWeeklyHoursRequest{
		TechnicianID: id,
		DayOfWeek:    *req.DayOfWeek,
		StartTime:    strings.TrimSpace(req.StartTime),
		EndTime:      strings.TrimSpace(req.EndTime),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": hours})
}

func (s *Server) SetDayOverride(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Date        string `json:"date"`
		Unavailable bool   `json:"unavailable"`
		Note        string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	override, err := s.calendarSvc.SetDayOverride(c.Request.Context(), calendardomain.SetDayOverrideRequest{
		TechnicianID: id,
		Date:         strings.TrimSpace(req.Date),
		Unavailable:  req.Unavailable,
		Note:         req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": override})
}

// calendarTechnician resolves :id and keeps technicians on their own calendar.
func (s *Server) calendarTechnician(c *gin.Context) (snowflake.ID, bool) {
	id, ok := idParam(c)
	if !ok {
		return 0, false
	}
	if a := currentActor(c); a.IsTechnician() && a.ID != id {
		AbortWithError(c, ErrForbidden)
		return 0, false
	}
	return id, true
}

// -------- Customers --------

type createCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), customerdomain.CreateCustomerRequest{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name        string `form:"name"`
		Email       string `form:"email"`
		CreatedFrom string `form:"created_from"`
		CreatedTo   string `form:"created_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdFrom, err := parseOptionalTime(query.CreatedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_created_from", "invalid created_from"))
		return
	}

	createdTo, err := parseOptionalTime(query.CreatedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_created_to", "invalid created_to"))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken:   query.PageToken,
		PageSize:    int32(query.PageSize),
		Name:        strings.TrimSpace(query.Name),
		Email:       strings.TrimSpace(query.Email),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.respondCustomer(c, id)
}

func (s *Server) ListCustomerAddresses(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.respondAddresses(c, id)
}

func (s *Server) AddCustomerAddress(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.addAddress(c, id)
}

// -------- Signed-in customer --------

func (s *Server) GetOwnProfile(c *gin.Context) {
	id, ok := ownCustomerID(c)
	if !ok {
		return
	}
	s.respondCustomer(c, id)
}

func (s *Server) ListOwnAddresses(c *gin.Context) {
	id, ok := ownCustomerID(c)
	if !ok {
		return
	}
	s.respondAddresses(c, id)
}

func (s *Server) AddOwnAddress(c *gin.Context) {
	id, ok := ownCustomerID(c)
	if !ok {
		return
	}
	s.addAddress(c, id)
}

func ownCustomerID(c *gin.Context) (snowflake.ID, bool) {
	a := currentActor(c)
	if a.Role != actor.RoleCustomer || a.ID == 0 {
		AbortWithError(c, ErrForbidden)
		return 0, false
	}
	return a.ID, true
}

type addAddressRequest struct {
	Label      string   `json:"label"`
	Line1      string   `json:"line1"`
	Line2      string   `json:"line2"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	PostalCode string   `json:"postal_code"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

func (s *Server) addAddress(c *gin.Context, customerID snowflake.ID) {
	var req addAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	address, err := s.customerSvc.AddAddress(c.Request.Context(), customerdomain.AddAddressRequest{
		CustomerID: customerID,
		Label:      req.Label,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": address})
}

func (s *Server) respondCustomer(c *gin.Context, id snowflake.ID) {
	customer, err := s.customerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customer})
}

func (s *Server) respondAddresses(c *gin.Context, id snowflake.ID) {
	addresses, err := s.customerSvc.ListAddresses(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": addresses})
}

// -------- Operations --------

func (s *Server) GetOperationsConfig(c *gin.Context) {
	if s.ops == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.ops.Get()})
}
