// Package catalogs serves the read-only resource catalog.
package catalogs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/api/respond"
	"github.com/platformhub/platformhub/internal/catalog"
	"github.com/platformhub/platformhub/internal/db/models"
)

// List returns every catalog entry in declaration order.
//
// @Summary  List catalog
// @Tags     Catalog
// @Produce  json
// @Success  200  {array}  catalog.Item
// @Router   /catalog [get]
func List(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.List())
}

// Get returns one catalog entry.
//
// @Summary  Get catalog entry
// @Tags     Catalog
// @Produce  json
// @Param    type  path  string  true  "Resource type"
// @Success  200  {object}  catalog.Item
// @Failure  404  {object}  map[string]interface{}  "Resource type not found"
// @Router   /catalog/{type} [get]
func Get(c *gin.Context) {
	item, err := catalog.Get(models.ResourceType(c.Param("type")))
	if err != nil {
		respond.Abort(c, http.StatusNotFound, "Resource type not found")
		return
	}
	c.JSON(http.StatusOK, item)
}
