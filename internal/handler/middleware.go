package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/djrq/queue-service/internal/license"
	pkglog "github.com/djrq/queue-service/pkg/log"
	"github.com/djrq/queue-service/pkg/response"
)

const (
	// LicenseHeaderKey carries the DJ's license token; possession of the
	// token is what authorizes queue mutations. Identity sign-in gates the
	// apps, never this API.
	LicenseHeaderKey = "X-License-Key"

	licenseKeyCtx = "license_key"
)

// RequireLicense validates the license header shape and stores the token in
// the request context for the handlers below it.
func RequireLicense() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(LicenseHeaderKey)
		if key == "" {
			response.Unauthorized(c, "missing "+LicenseHeaderKey+" header")
			c.Abort()
			return
		}
		if !license.Valid(key) {
			response.Unauthorized(c, "invalid license key format")
			c.Abort()
			return
		}

		normalized := license.Normalize(key)
		c.Set(licenseKeyCtx, normalized)
		c.Set(pkglog.FieldTenant, license.PathKey(normalized))
		c.Next()
	}
}

func licenseFrom(c *gin.Context) string {
	return c.GetString(licenseKeyCtx)
}
