package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
)

func (s *Server) ListNotifications(c *gin.Context) {
	var query struct {
		pagination.Pagination
		UnreadOnly string `form:"unread_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	unread, err := parseOptionalBool(query.UnreadOnly)
	if err != nil {
		AbortWithError(c, newValidationError("unread_only", "invalid_unread_only", "invalid unread_only"))
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), notificationdomain.ListRequest{
		Pagination: query.Pagination,
		Recipient:  currentActor(c),
		UnreadOnly: unread != nil && *unread,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	n, err := s.notificationSvc.MarkRead(c.Request.Context(), id, currentActor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": n})
}
