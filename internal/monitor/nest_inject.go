package monitor

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"

	"github.com/abyssnet/flochub/internal/pubsub"
)

const (
	rateLimitRate  = time.Second
	rateLimitLimit = 5
)

// rateLimiter caps POST /nest/inject at rateLimitLimit requests per
// rateLimitRate per client, keeping an external operator from overrunning
// the command queue by injecting frames faster than the dispatch loop can
// drain them.
func rateLimiter() gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  rateLimitRate,
		Limit: rateLimitLimit,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.String(http.StatusTooManyRequests, "rate limit exceeded, retry after "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}

// nestInjectRequest is the JSON body for POST /nest/inject: a hex-encoded
// NeST envelope frame, so a simulated host can POST a pre-formed FLOC
// broadcast without a real serial link.
type nestInjectRequest struct {
	FrameHex string `json:"frame_hex" binding:"required"`
}

func nestInjectHandler(ps pubsub.PubSub, topic string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req nestInjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		frame, err := hex.DecodeString(req.FrameHex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "frame_hex must be valid hex"})
			return
		}
		if ps == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pubsub not configured"})
			return
		}
		if err := ps.Publish(topic, frame); err != nil {
			logger.Warn("monitor: publishing nest injection failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	}
}
