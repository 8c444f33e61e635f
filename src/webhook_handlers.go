package main

import (
	"io"
	"log"
	"net/http"
	"staylog/src/config"
	"staylog/src/webhook"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxWebhookBody = 1 << 20

func paymentWebhookRoute(g *gin.Engine, gw *webhook.Gateway) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/payments/webhook", func(ctx *gin.Context) {
		requestID := uuid.New().String()
		payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
		if err != nil {
			log.Printf("[Webhook] %s error reading request body: %s\n", requestID, err.Error())
			ctx.String(http.StatusInternalServerError, "Internal server error")
			return
		}
		res := gw.Handle(ctx.Request.Context(), payload, ctx.GetHeader(config.WEBHOOK_SIGNATURE_HEADER))
		log.Printf("[Webhook] %s -> %d %s\n", requestID, res.StatusCode, res.Body)
		ctx.String(res.StatusCode, res.Body)
	})
	return apiv1
}
