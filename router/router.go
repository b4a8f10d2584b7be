package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-manager/config"
	"github.com/yeremiapane/table-manager/controllers"
	"github.com/yeremiapane/table-manager/middlewares"
	"github.com/yeremiapane/table-manager/repository"
	"github.com/yeremiapane/table-manager/services"
	"github.com/yeremiapane/table-manager/utils"
	"gorm.io/gorm"
)

var errRouteNotFound = errors.New("Route not found")

func SetupRouter(db *gorm.DB, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).RateLimit())

	store := repository.NewGormTableStore(db)
	tableSvc := services.NewTableService(store, cfg.BulkConcurrency)
	tableCtrl := controllers.NewTableController(tableSvc)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	{
		api.GET("/tables", tableCtrl.GetAllTables)
		api.GET("/tables/stats", tableCtrl.GetTableStats)
		api.GET("/tables/:id", tableCtrl.GetTableByID)
		api.POST("/tables", tableCtrl.CreateTable)
		api.POST("/tables/bulk", tableCtrl.BulkCreateTables)
		api.POST("/tables/bulk-delete", tableCtrl.BulkDeleteTables)
		api.PUT("/tables/:id", tableCtrl.UpdateTable)
		api.DELETE("/tables/:id", tableCtrl.DeleteTable)
	}

	r.NoRoute(func(c *gin.Context) {
		utils.RespondError(c, http.StatusNotFound, errRouteNotFound)
	})

	return r
}
