package proof

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
)

// Metrics observes validation outcomes. Optional.
type Metrics interface {
	ObserveProof(result string)
}

// Outcome labels for Metrics.
const (
	ResultValid    = "valid"
	ResultMissing  = "missing"
	ResultExpired  = "expired"
	ResultNoKeys   = "no_keys"
	ResultRejected = "rejected"
)

func outcome(err error) string {
	switch {
	case err == nil:
		return ResultValid
	case errors.Is(err, ErrMissingHeaders):
		return ResultMissing
	case errors.Is(err, ErrExpired):
		return ResultExpired
	case errors.Is(err, ErrNoKeys):
		return ResultNoKeys
	default:
		return ResultRejected
	}
}

// Middleware rejects requests without a valid proof before any handler runs.
//
// A rejection is answered with a bare 500 so the client cannot tell which
// check failed. token extracts the access token the same way the handlers
// do; metrics may be nil.
func Middleware(v *Validator, token func(*gin.Context) string, metrics Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := v.Check(c.Request.Context(), c.Request, token(c))
		if metrics != nil {
			metrics.ObserveProof(outcome(err))
		}
		if err != nil {
			logger.Warn("Proof validation failed: %s %s from %s: %v", c.Request.Method, c.Request.URL.Path, c.ClientIP(), err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Next()
	}
}
