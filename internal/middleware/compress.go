// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
)

// compressibleContentTypes lists media types worth compressing.
var compressibleContentTypes = []string{
	"application/json",
	"application/problem+json",
	"text/plain",
	"application/openmetrics-text",
}

// CompressJSON gzips buffered responses of a compressible content type once
// they reach minSize bytes. Smaller bodies are sent as is.
func CompressJSON(level, minSize int) func(http.Handler) http.Handler {
	pool := &sync.Pool{
		New: func() any {
			gz, err := gzip.NewWriterLevel(nil, level)
			if err != nil {
				gz = gzip.NewWriter(nil)
			}
			return gz
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			sw := &selectiveWriter{
				ResponseWriter: w,
				pool:           pool,
				minSize:        minSize,
			}
			next.ServeHTTP(sw, r)
			sw.flush()
		})
	}
}

// selectiveWriter buffers the response and decides on compression at the end.
type selectiveWriter struct {
	http.ResponseWriter
	pool       *sync.Pool
	minSize    int
	buffer     []byte
	statusCode int
}

func (sw *selectiveWriter) WriteHeader(statusCode int) {
	if sw.statusCode == 0 {
		sw.statusCode = statusCode
	}
}

func (sw *selectiveWriter) Write(b []byte) (int, error) {
	sw.buffer = append(sw.buffer, b...)
	return len(b), nil
}

func (sw *selectiveWriter) flush() {
	h := sw.Header()
	h.Add("Vary", "Accept-Encoding")

	compress := len(sw.buffer) >= sw.minSize &&
		h.Get("Content-Encoding") == "" &&
		isCompressible(h.Get("Content-Type"))
	if compress {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
	}

	if sw.statusCode != 0 {
		sw.ResponseWriter.WriteHeader(sw.statusCode)
	}
	if len(sw.buffer) == 0 {
		return
	}

	if !compress {
		_, _ = sw.ResponseWriter.Write(sw.buffer)
		return
	}

	gz := sw.pool.Get().(*gzip.Writer)
	gz.Reset(sw.ResponseWriter)
	_, _ = gz.Write(sw.buffer)
	_ = gz.Close()
	sw.pool.Put(gz)
}

// isCompressible checks if the content type should be compressed.
func isCompressible(contentType string) bool {
	if contentType == "" {
		return false
	}

	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	for _, ct := range compressibleContentTypes {
		if mediaType == ct {
			return true
		}
	}
	return strings.HasPrefix(mediaType, "text/")
}
