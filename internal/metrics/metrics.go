package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// 上传结果标签。
const (
	UploadStored   = "stored"
	UploadRejected = "rejected"
	UploadFailed   = "failed"
)

// 登录结果标签。
const (
	LoginSucceeded = "success"
	LoginFailed    = "failure"
)

var (
	FeedConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "social",
		Subsystem: "feed",
		Name:      "connections",
		Help:      "Live feed websocket connections",
	})
	FeedEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "feed",
		Name:      "events_total",
		Help:      "Post events published to the live feed, by type",
	}, []string{"type"})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "media",
		Name:      "uploads_total",
		Help:      "Picture uploads, by folder and result",
	}, []string{"folder", "result"})
	UploadBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "social",
		Subsystem: "media",
		Name:      "upload_bytes",
		Help:      "Size of stored picture uploads",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6),
	}, []string{"folder"})
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts, by result",
	}, []string{"result"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(FeedConnections, FeedEventsTotal, UploadsTotal, UploadBytes, LoginsTotal,
		HttpRequestsTotal, HttpRequestDuration)
}

// ObserveUpload 记录一次上传；只有成功保存的文件计入大小分布。
func ObserveUpload(folder, result string, size int64) {
	UploadsTotal.WithLabelValues(folder, result).Inc()
	if result == UploadStored {
		UploadBytes.WithLabelValues(folder).Observe(float64(size))
	}
}

func ObserveLogin(ok bool) {
	if ok {
		LoginsTotal.WithLabelValues(LoginSucceeded).Inc()
		return
	}
	LoginsTotal.WithLabelValues(LoginFailed).Inc()
}

// GinMiddleware 统计请求数与耗时。未命中路由的请求统一记为 "unmatched"，避免标签基数膨胀。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": strconv.Itoa(c.Writer.Status())}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
