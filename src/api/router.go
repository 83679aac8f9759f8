package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/arktty/webtty/src/handler"
)

// RouterConfig controls the terminal client's presentation settings, the
// shell new sessions are spawned with, and the shared secret gating access
// to the terminal and its admin surface.
type RouterConfig struct {
	AppTitle     string
	HScroll      bool
	ShellCommand []string
	AuthSecret   string
}

// SetupRouter configures every route this binary serves. If
// disableRequestLogging is true, the logrus middleware is skipped. If
// enableProcessingTime is true, the Server-Timing header middleware is
// added.
func SetupRouter(cfg RouterConfig, disableRequestLogging bool, enableProcessingTime bool) (*gin.Engine, *handler.TerminalHandler) {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(noCacheMiddleware())

	if enableProcessingTime {
		r.Use(serverTimingMiddleware())
	}
	if !disableRequestLogging {
		r.Use(logrusMiddleware())
	}

	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	baseHandler := handler.NewBaseHandler()
	terminalHandler := handler.NewTerminalHandler()
	if len(cfg.ShellCommand) > 0 {
		terminalHandler.SetShellCommand(cfg.ShellCommand)
	}
	systemHandler := handler.NewSystemHandler(terminalHandler, cfg.AppTitle, cfg.HScroll)

	head := headHandler()
	gate := authMiddleware(cfg.AuthSecret)

	r.GET("/tty/ws", gate, terminalHandler.HandleTerminalWS)
	r.HEAD("/tty/ws", head)

	r.POST("/restart", gate, systemHandler.HandleRestart)
	r.GET("/sessions", gate, systemHandler.HandleSessions)
	r.HEAD("/sessions", head)
	r.GET("/config", gate, systemHandler.HandleConfig)
	r.HEAD("/config", head)
	r.GET("/health", systemHandler.HandleHealth)
	r.HEAD("/health", head)

	r.GET("/", baseHandler.HandleWelcome)

	logrus.Infof("router configured: shell=%v appTitle=%q", cfg.ShellCommand, cfg.AppTitle)

	return r, terminalHandler
}

// authMiddleware is a stand-in boolean gate for the real login/cookie
// layer, which sits in front of this service: requests must
// carry the configured shared secret, either as a bearer token or as a
// `token` query parameter — WebSocket upgrade requests from a browser can't
// set arbitrary headers before the handshake, so the query parameter is the
// one that actually gets used in practice. An empty secret disables the
// gate entirely; webttyd refuses to start without a secret, so only
// callers that build the router directly (such as the tests) run ungated.
func authMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		token := c.Query("token")
		if token == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// corsMiddleware adds permissive CORS headers to all responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, HEAD, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// headHandler returns a bare 200 OK, letting callers probe for an
// endpoint's existence without triggering its side effects.
func headHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
	}
}

// noCacheMiddleware adds no-cache headers to all responses.
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Writer.Header().Set("Pragma", "no-cache")
		c.Writer.Header().Set("Expires", "0")
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}

// sensitiveQueryParams are query parameter names redacted from request logs.
var sensitiveQueryParams = []string{
	"api_key", "apikey", "api-key",
	"token", "access_token", "refresh_token", "auth_token", "bearer",
	"password", "passwd", "pwd",
	"secret", "client_secret", "api_secret",
	"key", "private_key", "encryption_key",
	"authorization", "auth",
	"credential", "credentials",
	"session", "session_id", "sessionid", "sessionId",
	"jwt",
}

// redactSecrets redacts sensitive query parameter values from a path+query
// string before it is written to the log.
func redactSecrets(pathWithQuery string) string {
	parts := strings.SplitN(pathWithQuery, "?", 2)
	if len(parts) != 2 {
		return pathWithQuery
	}

	basePath, queryString := parts[0], parts[1]

	values, err := url.ParseQuery(queryString)
	if err != nil {
		return redactQueryPatterns(pathWithQuery)
	}

	hasSecrets := false
	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				hasSecrets = true
				break
			}
		}
		if hasSecrets {
			break
		}
	}
	if !hasSecrets {
		return pathWithQuery
	}

	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				values.Set(key, "[REDACTED]")
				break
			}
		}
	}

	return basePath + "?" + values.Encode()
}

// redactQueryPatterns is the fallback path when the query string does not
// parse as valid application/x-www-form-urlencoded data.
func redactQueryPatterns(pathWithQuery string) string {
	result := pathWithQuery
	for _, param := range sensitiveQueryParams {
		pattern := regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(param) + `=)[^&\s]*`)
		result = pattern.ReplaceAllString(result, "${1}[REDACTED]")
	}
	return result
}

func logrusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		sanitizedPath := redactSecrets(path)

		start := time.Now()
		c.Next()
		latency := int(math.Ceil(float64(time.Since(start).Nanoseconds()) / 1e6))
		statusCode := c.Writer.Status()
		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}

		if len(c.Errors) > 0 {
			logrus.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}

		msg := fmt.Sprintf("%s %s %d %d %dms", c.Request.Method, sanitizedPath, statusCode, dataLength, latency)
		switch {
		case statusCode >= http.StatusInternalServerError:
			logrus.Error(msg)
		case statusCode >= http.StatusBadRequest:
			logrus.Warn(msg)
		default:
			logrus.Info(msg)
		}
	}
}
