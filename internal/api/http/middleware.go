package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/token-authority/internal/observability"
	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware converts every failure into the wire envelope.
// Upstream failures relay the collaborator's body verbatim; everything else
// maps through the domain error taxonomy, with unexpected errors collapsed to
// a generic internal failure.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}

			if upstreamErr, ok := apperrors.AsUpstream(err); ok {
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), "UPSTREAM_FAILURE")
				}
				logger.Warn("relaying upstream failure",
					zap.String("source", upstreamErr.Source),
					zap.Int("status", upstreamErr.Status),
				)
				c.Status(relayStatus(upstreamErr.Status))
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				_ = c.Send(upstreamErr.Body)
				err = nil
				return
			}

			domainErr := apperrors.ToDomainError(err)
			if metrics != nil {
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			}
			response := fiber.Map{
				"code": domainErr.HTTPStatus,
				"i18n": domainErr.Code,
			}
			if len(domainErr.Details) > 0 {
				response["data"] = domainErr.Details
			}
			if domainErr.HTTPStatus >= 500 {
				logger.Error("request failed", zap.Error(domainErr))
			}
			c.Status(domainErr.HTTPStatus)
			_ = c.JSON(response)
			err = nil
		}()
		return c.Next()
	}
}

// relayStatus keeps a collaborator's status when it is a usable HTTP code.
// Envelope-only codes outside the HTTP range degrade to 502.
func relayStatus(status int) int {
	if status >= 100 && status <= 599 {
		return status
	}
	return http.StatusBadGateway
}
