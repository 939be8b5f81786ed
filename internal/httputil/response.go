// Package httputil provides shared HTTP response helpers.
package httputil

import "github.com/gin-gonic/gin"

// CodeNotFound is the error code of unknown routes.
const CodeNotFound = "not_found"

// RespondError writes a standardized JSON error response and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	resp := gin.H{
		"code":    code,
		"message": message,
	}

	if rid := c.GetString("request_id"); rid != "" {
		resp["request_id"] = rid
	}

	c.AbortWithStatusJSON(status, resp)
}
