package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"tillcore/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Replay protection for money-moving endpoints. A client that retries a
// capture after a dropped response must get the original result back, not
// a second charge. Keyed by tenant + Idempotency-Key + route so the same
// key can be reused across different operations.

const (
	idemPrefix  = "idem:"
	idemPending = "__pending__"
	idemTTL     = 24 * time.Hour
)

type idemRecord struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// bodyCapture tees the response body so a successful result can be stored.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a request repeats an
// Idempotency-Key. Requests without the header pass through untouched.
// A concurrent duplicate (first attempt still in flight) gets a 409.
func Idempotency(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			c.Next()
			return
		}

		claims := GetClaims(c)
		redisKey := idemPrefix + claims.TenantID + ":" + c.FullPath() + ":" + key
		ctx := c.Request.Context()

		ok, err := rdb.SetNX(ctx, redisKey, idemPending, idemTTL).Result()
		if err != nil {
			// Redis down: let the request through rather than block sales.
			log.Warn().Err(err).Msg("idempotency: redis unavailable, passing through")
			c.Next()
			return
		}

		if !ok {
			stored, err := rdb.Get(ctx, redisKey).Result()
			if err != nil {
				log.Warn().Err(err).Msg("idempotency: lookup failed, passing through")
				c.Next()
				return
			}
			if stored == idemPending {
				c.AbortWithStatusJSON(http.StatusConflict, apierror.New("request with this idempotency key is still in flight"))
				return
			}
			var rec idemRecord
			if err := json.Unmarshal([]byte(stored), &rec); err != nil {
				log.Error().Err(err).Msg("idempotency: corrupt record, passing through")
				c.Next()
				return
			}
			c.Data(rec.Status, "application/json", rec.Body)
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			// Don't pin a transient failure; allow the client to retry.
			rdb.Del(ctx, redisKey)
			return
		}

		rec, err := json.Marshal(idemRecord{Status: status, Body: capture.buf.Bytes()})
		if err != nil {
			rdb.Del(ctx, redisKey)
			return
		}
		if err := rdb.Set(ctx, redisKey, rec, idemTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("idempotency: store failed")
		}
	}
}
