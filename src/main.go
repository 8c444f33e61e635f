package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"staylog/src/boot"
	"staylog/src/config"
	"staylog/src/lib"
	"staylog/src/middlewares"
	"staylog/src/types"
	"strconv"
	"syscall"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
)

const (
	apiPrefix string = "/api/v1"
)

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

// maintenanceModeMiddleware rejects every request while MAINTENANCE_MODE is
// true. An unset or unparsable value leaves the API open.
func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		on, err := strconv.ParseBool(mm)
		if err == nil && on {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func corsMiddleware(g *gin.Engine) *gin.Engine {
	if config.GetAPIEnv() == string(types.Local) {
		g.Use(cors.Default())
		return g
	}
	appHost := os.Getenv("APP_HOST")
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "Cache-Control", "Last-Event-ID")
	cc.AllowOriginFunc = func(origin string) bool {
		if appHost == "" {
			return false
		}
		match, _ := regexp.MatchString(appHost, origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	g.Use(cors.New(cc))
	return g
}

// newApp assembles the engine around already wired services.
func newApp(s *boot.Services) *gin.Engine {
	router := setupRouter()
	router = corsMiddleware(router)
	router = maintenanceModeMiddleware(router)

	paymentWebhookRoute(router, s.Gateway)
	notificationStreamRoute(router, s.Hub, config.GetSSEHeartbeat())

	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware(s.Verifier))
	{
		authorized = notificationHandlers(authorized, s.Dispatcher)
	}
	return router
}

func initLogger() {
	cwd, _ := os.Getwd()
	logsDir := path.Join(cwd, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		log.Printf("Error creating logs directory: %s\n", err.Error())
		return
	}
	serverLogs := path.Join(logsDir, "server.log")
	apiLogs := path.Join(logsDir, "api.log")
	gin.ForceConsoleColor()

	f, err := os.Create(apiLogs)
	if err == nil {
		gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}))
}

func main() {
	initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var secrets lib.SecretsGetter
	if config.GetWebhookSecretID() != "" {
		client, err := lib.AWSGetSecretsManagerClient(ctx)
		if err != nil {
			log.Printf("[Secrets] falling back to TOSS_WEBHOOK_SECRET: %s\n", err.Error())
		} else {
			secrets = client
		}
	}
	secret := boot.ResolveWebhookSecret(ctx, secrets)
	if secret == "" {
		log.Println("[Webhook] no webhook secret configured, every delivery will be rejected")
	}

	services := boot.NewServices(boot.InitStore(), secret)
	services.InitBroker(ctx)
	services.InitScheduler()

	router := newApp(services)
	srv := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err.Error())
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	// open streams would otherwise hold Shutdown until the deadline
	services.Hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %s\n", err.Error())
	}
	services.Shutdown()
}
