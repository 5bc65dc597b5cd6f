package handlers

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MinSizeForCompression is the smallest response body worth gzipping.
const MinSizeForCompression = 1024

func acceptsGzip(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept-Encoding"), "gzip")
}

// CompressData compresses byte data using gzip
func CompressData(data []byte) ([]byte, error) {
	var compressed bytes.Buffer
	gzipWriter := gzip.NewWriter(&compressed)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}

	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}

	return compressed.Bytes(), nil
}

// DecompressData decompresses gzipped byte data
func DecompressData(data []byte) ([]byte, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()

	return io.ReadAll(gzipReader)
}

// writeJSON encodes v, gzipping the body when the client accepts it and it is
// large enough to benefit.
func writeJSON(c *gin.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:   err.Error(),
			Code:    http.StatusInternalServerError,
			Message: "failed to encode response",
		})
		return
	}

	if acceptsGzip(c) && len(data) >= MinSizeForCompression {
		if compressed, err := CompressData(data); err == nil && len(compressed) < len(data) {
			c.Header("Content-Encoding", "gzip")
			c.Header("Vary", "Accept-Encoding")
			c.Data(status, "application/json; charset=utf-8", compressed)
			return
		}
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

// bindJSON decodes the request body into v, inflating gzip bodies first.
func bindJSON(c *gin.Context, v any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	if c.GetHeader("Content-Encoding") == "gzip" {
		if body, err = DecompressData(body); err != nil {
			return err
		}
	}
	return json.Unmarshal(body, v)
}
