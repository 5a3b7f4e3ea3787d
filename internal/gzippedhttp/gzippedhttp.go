// Package gzippedhttp accepts gzip-compressed request bodies. Response
// compression is left to chi's Compress middleware.
package gzippedhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/patric-chuzhbe/contentapi/internal/logger"
	"github.com/patric-chuzhbe/contentapi/internal/models"
)

// MalformedBodyDetail is returned when a body claims gzip encoding but
// is not a gzip stream.
const MalformedBodyDetail = "Malformed gzip body."

// CompressedReader wraps an io.ReadCloser and decompresses its input using gzip.
type CompressedReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressedReader returns a new CompressedReader that reads gzip-compressed data
// from the provided io.ReadCloser.
func NewCompressedReader(requestBody io.ReadCloser) (*CompressedReader, error) {
	zippedRequestBody, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &CompressedReader{
		r:  requestBody,
		zr: zippedRequestBody,
	}, nil
}

func (c *CompressedReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip reader and the underlying io.ReadCloser.
func (c *CompressedReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// DecompressRequest replaces the body of a request sent with
// "Content-Encoding: gzip" by its decompressed stream.
func DecompressRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(strings.ToLower(request.Header.Get("Content-Encoding")), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		requestBodyWithCompression, err := NewCompressedReader(request.Body)
		if err != nil {
			logger.Log.Debugln("Error calling the `NewCompressedReader()`: ", err)
			response.Header().Set("Content-Type", "application/json")
			response.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(response).Encode(models.ErrorResponse{Detail: MalformedBodyDetail})
			return
		}
		defer requestBodyWithCompression.Close()

		request.Body = requestBodyWithCompression
		request.Header.Del("Content-Encoding")
		request.ContentLength = -1

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
