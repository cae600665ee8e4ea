package middleware

import (
	"compress/gzip"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024, // Compress responses >= 1KB
		CompressionLevel: 6,    // Balanced compression level
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"application/xml",
		},
	}
}

// CompressionMiddleware provides gzip compression for HTTP responses
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool // Pool of gzip writers for better performance
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	return &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler returns a Gin middleware that gzip-compresses responses for
// clients that accept it
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		gzw := &gzipResponseWriter{
			ResponseWriter: c.Writer,
			middleware:     cm,
		}
		c.Writer = gzw

		c.Next()

		gzw.close()
		cm.stats.RecordRequest(gzw.originalBytes, gzw.compressedOut(), gzw.compressing)
	}
}

// shouldCompress checks if the content type should be compressed
func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// gzipResponseWriter wraps gin's ResponseWriter and starts compressing
// once the first large-enough compressible write arrives. Content-Length
// is dropped because the compressed size is unknown up front.
type gzipResponseWriter struct {
	gin.ResponseWriter
	middleware *CompressionMiddleware

	gzipWriter    *gzip.Writer
	decided       bool
	compressing   bool
	originalBytes int64
}

func (gzw *gzipResponseWriter) Write(data []byte) (int, error) {
	gzw.originalBytes += int64(len(data))

	if !gzw.decided {
		gzw.decided = true

		contentType := gzw.Header().Get("Content-Type")
		if len(data) >= gzw.middleware.config.MinSize && gzw.middleware.shouldCompress(contentType) {
			gzw.compressing = true
			gzw.Header().Set("Content-Encoding", "gzip")
			gzw.Header().Set("Vary", "Accept-Encoding")
			gzw.Header().Del("Content-Length")

			gz := gzw.middleware.pool.Get().(*gzip.Writer)
			gz.Reset(gzw.ResponseWriter)
			gzw.gzipWriter = gz
		}
	}

	if gzw.compressing {
		n, err := gzw.gzipWriter.Write(data)
		return n, err
	}
	return gzw.ResponseWriter.Write(data)
}

// WriteString routes string writes through Write so compression applies
func (gzw *gzipResponseWriter) WriteString(s string) (int, error) {
	return gzw.Write([]byte(s))
}

func (gzw *gzipResponseWriter) close() {
	if gzw.gzipWriter != nil {
		gzw.gzipWriter.Close()
		gzw.middleware.pool.Put(gzw.gzipWriter)
		gzw.gzipWriter = nil
	}
}

// compressedOut returns the bytes written to the wire when compressing.
// The exact figure lives in the underlying writer's counter.
func (gzw *gzipResponseWriter) compressedOut() int64 {
	if !gzw.compressing {
		return gzw.originalBytes
	}
	return int64(gzw.ResponseWriter.Size())
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(0)
	if cs.TotalBytes > 0 && cs.CompressedBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	stats := cm.stats.GetStats()
	stats["min_size"] = strconv.Itoa(cm.config.MinSize)
	return stats
}
