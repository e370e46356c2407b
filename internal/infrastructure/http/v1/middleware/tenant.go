package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	appctx "github.com/alvarodevdoo/ERP-sub000/internal/core/context"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/tenant"
)

// TenantHeader is the HTTP header for tenant identification.
const TenantHeader = "X-Tenant-ID"

// Tenant resolves the tenant of the request and puts it into the context.
// It must run after Auth: the header is optional, the token's tenant is used
// when it is absent, and a header naming another tenant is rejected.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var tokenTenant string
		if user := appctx.GetUser(ctx); user != nil {
			tokenTenant = user.TenantID
		}

		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			raw = tokenTenant
		}
		if raw == "" {
			_ = c.Error(apperror.NewInvalidArgument("tenant is required").WithDetail("header", TenantHeader))
			c.Abort()
			return
		}

		tenantID, err := tenant.Validate(raw)
		if err != nil {
			_ = c.Error(
				apperror.NewInvalidArgument("invalid tenant id").
					WithDetail("header", TenantHeader).
					WithDetail("value", raw),
			)
			c.Abort()
			return
		}

		if tokenTenant != "" && tokenTenant != tenantID {
			_ = c.Error(
				apperror.NewPermissionDenied("tenant", tenantID).
					WithDetail("token_tenant_id", tokenTenant),
			)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(tenant.WithTenantID(ctx, tenantID))
		c.Set("tenant_id", tenantID)

		c.Next()
	}
}
