package http

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var jsonNamesOnce sync.Once

// useJSONFieldNames makes binding errors report fields by their JSON name.
func useJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// RouterConfig holds the handlers and session parser the router dispatches to.
type RouterConfig struct {
	Quizzes      *QuizHandler
	Auth         *AuthHandler
	Live         *WSHandler
	Tokens       TokenParser
	AllowOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), requestMetrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	} else {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", identify(cfg.Tokens))
	{
		quiz := api.Group("/quiz")
		quiz.POST("/create", cfg.Quizzes.Create)
		quiz.POST("/end", cfg.Quizzes.End)
		quiz.POST("/make-live", cfg.Quizzes.MakeLive)
		quiz.POST("/get", cfg.Quizzes.Get)
		quiz.POST("/play", cfg.Quizzes.Play)
		quiz.POST("/submit", cfg.Quizzes.Submit)
		quiz.POST("/results", cfg.Quizzes.Results)
		quiz.GET("/mine", cfg.Quizzes.Mine)
		quiz.GET("/live", gin.WrapF(cfg.Live.ServeWS))

		auth := api.Group("/auth")
		auth.POST("/sign-up", cfg.Auth.SignUp)
		auth.POST("/verify", cfg.Auth.Verify)
		auth.POST("/login", cfg.Auth.Login)
		auth.GET("/me", cfg.Auth.Me)

		api.GET("/credits/history", cfg.Auth.CreditHistory)
	}
	return r
}
