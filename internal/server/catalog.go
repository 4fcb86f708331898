package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/actor"
	catalogdomain "github.com/smallbiznis/fieldops/internal/catalog/domain"
)

func (s *Server) ListServiceCategories(c *gin.Context) {
	// Only admins browse retired categories.
	activeOnly := currentActor(c).Role != actor.RoleAdmin
	if value, err := parseOptionalBool(c.Query("active")); err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	} else if value != nil && !activeOnly {
		activeOnly = *value
	}

	categories, err := s.catalogSvc.ListCategories(c.Request.Context(), activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

func (s *Server) ListServiceItems(c *gin.Context) {
	categoryID, err := parseOptionalSnowflakeID(c.Query("category_id"))
	if err != nil {
		AbortWithError(c, newValidationError("category_id", "invalid_category_id", "invalid category_id"))
		return
	}
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}
	if currentActor(c).Role != actor.RoleAdmin {
		onlyActive := true
		active = &onlyActive
	}

	items, err := s.catalogSvc.ListItems(c.Request.Context(), catalogdomain.ListItemsRequest{
		CategoryID: categoryID,
		Active:     active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetServiceItem(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	item, err := s.catalogSvc.GetItem(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !item.Active && currentActor(c).Role != actor.RoleAdmin {
		AbortWithError(c, catalogdomain.ErrItemNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CreateServiceCategory(c *gin.Context) {
	var req catalogdomain.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	category, err := s.catalogSvc.CreateCategory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": category})
}

func (s *Server) CreateServiceItem(c *gin.Context) {
	var req catalogdomain.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.catalogSvc.CreateItem(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) UpdateServiceItem(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req catalogdomain.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = id

	item, err := s.catalogSvc.UpdateItem(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}
