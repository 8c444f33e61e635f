package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"staylog/src/config"
	"staylog/src/notifications"
	"staylog/src/stream"
	"staylog/src/types"
	"time"

	"github.com/gin-gonic/gin"
)

func notificationStreamRoute(g *gin.Engine, hub *stream.Hub, heartbeat time.Duration) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.GET("/notification/subscribe", func(ctx *gin.Context) {
		var query types.SubscribeQuery
		if err := ctx.ShouldBindQuery(&query); err != nil {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ch, err := hub.Subscribe(query.Token)
		if err != nil {
			log.Printf("[SSE] subscribe rejected: %s\n", err.Error())
			if errors.Is(err, stream.ErrUnauthorized) {
				ctx.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			ctx.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		defer ch.Close()

		ctx.Header("Content-Type", "text/event-stream")
		ctx.Header("Cache-Control", "no-cache")
		ctx.Header("Connection", "keep-alive")
		ctx.Header("X-Accel-Buffering", "no")
		ctx.SSEvent("connect", "connected")
		ctx.Writer.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		lifetime := time.NewTimer(hub.Lifetime())
		defer lifetime.Stop()
		gone := ctx.Request.Context().Done()

		ctx.Stream(func(w io.Writer) bool {
			select {
			case <-gone:
				return false
			case <-ch.Done():
				return false
			case <-lifetime.C:
				log.Printf("[SSE] channel %s reached its lifetime\n", ch.ID)
				return false
			case <-ticker.C:
				_, err := io.WriteString(w, ": heartbeat\n\n")
				return err == nil
			case msg := <-ch.Messages():
				ctx.SSEvent(msg.Event, string(msg.Data))
				return true
			}
		})
		log.Printf("[SSE] channel %s for user %d closed\n", ch.ID, ch.UserID)
	})
	return apiv1
}

func notificationHandlers(g *gin.RouterGroup, d *notifications.Dispatcher) *gin.RouterGroup {
	g.GET("/notifications", func(ctx *gin.Context) {
		var query types.NotificationListQuery
		if err := ctx.ShouldBindQuery(&query); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		userID := ctx.GetUint("id")
		list, err := d.List(ctx.Request.Context(), userID, query)
		if err != nil {
			log.Printf("[Notifications] Error listing for user %d: %s\n", userID, err.Error())
			ctx.Status(http.StatusInternalServerError)
			return
		}
		limit := query.Limit
		if limit == 0 {
			limit = config.DEFAULT_PAGE_SIZE
		}
		ctx.JSON(http.StatusOK, gin.H{
			"notifications": list,
			"hasNext":       len(list) == limit,
		})
	})
	return g
}
