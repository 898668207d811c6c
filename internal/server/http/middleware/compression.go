package middleware

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/plotcatalog/internal/server/http/dto"
)

// DecompressRequest unwraps gzip and deflate request bodies so that
// dataset uploads may be sent compressed. Other codings are refused with
// 415. The body limit applies to the decompressed stream when it runs
// after this middleware.
func DecompressRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		coding := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
		if coding == "identity" {
			c.Request.Header.Del("Content-Encoding")
		}
		if coding == "" || coding == "identity" || c.Request.Body == nil {
			c.Next()
			return
		}

		original := c.Request.Body
		var (
			reader io.ReadCloser
			err    error
		)
		switch coding {
		case "gzip", "x-gzip":
			reader, err = gzip.NewReader(original)
		case "deflate":
			reader = flate.NewReader(original)
		default:
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType,
				dto.ErrorResponse{Error: fmt.Sprintf("unsupported content encoding %q", coding)})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed gzip body"})
			return
		}
		defer reader.Close()
		defer original.Close()

		c.Request.Body = reader
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}
