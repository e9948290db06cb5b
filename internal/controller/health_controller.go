package controller

import (
	"context"
	"earninja_backend/internal/util"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB         *gorm.DB
	Redis      *redis.Client
	FFmpegPath string
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, ffmpegPath string) *HealthController {
	return &HealthController{DB: db, Redis: rdb, FFmpegPath: ffmpegPath}
}

// HealthCheck godoc
// @Summary Service health
// @Description database and redis are required, ffmpeg is reported only
// @Tags system
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	sqlDB, err := c.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(checkCtx)
	}
	if err != nil {
		components["database"] = "down"
		healthy = false
	} else {
		components["database"] = "up"
	}

	switch {
	case c.Redis == nil:
		components["redis"] = "disabled"
	case c.Redis.Ping(checkCtx).Err() != nil:
		components["redis"] = "down"
		healthy = false
	default:
		components["redis"] = "up"
	}

	if version, err := util.GetFFmpegVersion(c.FFmpegPath); err != nil {
		components["ffmpeg"] = "missing"
	} else {
		components["ffmpeg"] = strings.TrimSpace(strings.SplitN(version, "\n", 2)[0])
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "degraded",
			Data:    gin.H{"status": "degraded", "components": components},
		})
		return
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
