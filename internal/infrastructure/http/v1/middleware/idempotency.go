package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	appctx "github.com/alvarodevdoo/ERP-sub000/internal/core/context"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/tenant"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres"
	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

const HeaderIdempotencyKey = "Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore persists keyed responses. Implemented by postgres.IdempotencyStore.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, tenantID, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, tenantID, key string, resp postgres.IdempotencyReplay) error
	FailKey(ctx context.Context, tenantID, key string, resp postgres.IdempotencyReplay) error
	ReleaseKey(ctx context.Context, tenantID, key string) error
}

// Idempotency middleware protects against duplicate requests.
// Must run after Tenant.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		tenantID := tenant.GetTenantID(ctx)

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewInvalidArgument("failed to read request body").WithDetail("reason", err.Error()))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewInvalidArgument("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.AcquireKey(ctx, tenantID, key, appctx.GetUserID(ctx), operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency records the response a handler is about to write so
// that a retry with the same key gets it back unchanged.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	finishIdempotency(c, func(ctx context.Context, store IdempotencyStore, tenantID, key string) error {
		return store.CompleteKey(ctx, tenantID, key, postgres.IdempotencyReplay{
			StatusCode: statusCode, ContentType: contentType, Body: body,
		})
	})
}

// failIdempotency stores client errors for replay and releases the key on
// server errors so the request can be retried.
func failIdempotency(c *gin.Context, statusCode int, body []byte) {
	finishIdempotency(c, func(ctx context.Context, store IdempotencyStore, tenantID, key string) error {
		if statusCode >= http.StatusInternalServerError {
			return store.ReleaseKey(ctx, tenantID, key)
		}
		return store.FailKey(ctx, tenantID, key, postgres.IdempotencyReplay{
			StatusCode: statusCode, ContentType: gin.MIMEJSON, Body: body,
		})
	})
}

func finishIdempotency(c *gin.Context, fn func(ctx context.Context, store IdempotencyStore, tenantID, key string) error) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	v, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return
	}
	store, ok := v.(IdempotencyStore)
	if !ok || store == nil {
		return
	}
	ctx := c.Request.Context()
	if err := fn(ctx, store, tenant.GetTenantID(ctx), key); err != nil {
		logger.Warn(ctx, "idempotency finish failed", "key", key, "error", err)
	}
	// A key is finished once.
	c.Set(ctxIdempotencyKey, "")
}
