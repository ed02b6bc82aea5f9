package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/fourmis/core"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "fourmis",
	Name:      "http_request_duration_seconds",
	Help:      "The latency of the HTTP requests.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "path", "code"})

// roleMiddleware only lets through the users of one of the roles.
func roleMiddleware(roles ...core.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// metricsMiddleware observes the duration of every request, labelled by route.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil {
			ctx.Error(err)
		}

		path := ctx.Path()
		if path == "" {
			path = "unknown"
		}
		requestDuration.
			WithLabelValues(ctx.Request().Method, path, strconv.Itoa(ctx.Response().Status)).
			Observe(time.Since(start).Seconds())
		return nil
	}
}
