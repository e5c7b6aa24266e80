package services

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"moagem-api/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダー名です。
const RequestIDHeader = "X-Request-ID"

// DefaultMonitoringCapacity は保持するリクエストログの件数です。
const DefaultMonitoringCapacity = 1000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	RequestID    string        `json:"requestId"`
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
// ログは固定長のリングバッファに保持され、古いものから上書きされます。
type MonitoringService struct {
	mu       sync.RWMutex
	logs     []LogEntry
	next     int
	full     bool
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。capacityが0以下の場合は既定値を使います。
func NewMonitoringService(capacity int, logger *zap.Logger) *MonitoringService {
	if capacity <= 0 {
		capacity = DefaultMonitoringCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 製糖工場の現地時間で時間帯を集計する
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}

	return &MonitoringService{
		logs:     make([]LogEntry, capacity),
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[s.next] = entry
	s.next = (s.next + 1) % len(s.logs)
	if s.next == 0 {
		s.full = true
	}
}

// Entries は記録済みのログを古い順に返します。
func (s *MonitoringService) Entries() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked()
}

func (s *MonitoringService) entriesLocked() []LogEntry {
	if !s.full {
		return append([]LogEntry(nil), s.logs[:s.next]...)
	}
	out := make([]LogEntry, 0, len(s.logs))
	out = append(out, s.logs[s.next:]...)
	return append(out, s.logs[:s.next]...)
}

// LoggingMiddleware はリクエストIDを付与し、リクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()

		path := c.Request.URL.Path
		elapsed := s.now().Sub(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)

		// 監視系のパスは集計から除外
		if strings.HasPrefix(path, "/api/v1/monitoring") || path == "/metrics" {
			return
		}

		s.LogRequest(LogEntry{
			RequestID:    requestID,
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   status,
			ResponseTime: elapsed,
		})
	}
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
}

// ステータスクラスの表示順
var statusClasses = []string{"2xx Success", "4xx Client Error", "5xx Server Error"}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}

	s.mu.RLock()
	entries := s.entriesLocked()
	s.mu.RUnlock()

	now := s.now().In(s.location)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filtered := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Timestamp.After(since) {
			filtered = append(filtered, entry)
		}
	}

	// 時間帯ごとのリクエスト数（過去から現在の順）
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[int64]int, periodHours)
	for i := 0; i < periodHours; i++ {
		target := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketIndex[target.Unix()] = i
		requestsOverTime[i] = map[string]interface{}{"time": target.Format("15:00"), "requests": 0}
	}

	endpoints := make(map[string]int)
	statusCounts := make(map[string]int, len(statusClasses))
	responseTimeSum := make(map[string]time.Duration)

	for _, entry := range filtered {
		if i, ok := bucketIndex[entry.Timestamp.In(s.location).Truncate(time.Hour).Unix()]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}

		endpoints[entry.Path]++
		responseTimeSum[entry.Path] += entry.ResponseTime

		switch {
		case entry.StatusCode >= 500:
			statusCounts[statusClasses[2]]++
		case entry.StatusCode >= 400:
			statusCounts[statusClasses[1]]++
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			statusCounts[statusClasses[0]]++
		}
	}

	statusCodes := make([]map[string]interface{}, 0, len(statusClasses))
	for _, name := range statusClasses {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": statusCounts[name]})
	}

	paths := make([]string, 0, len(responseTimeSum))
	for path := range responseTimeSum {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, path := range paths {
		avg := responseTimeSum[path].Milliseconds() / int64(endpoints[path])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": path, "responseTime": avg})
	}

	// 直近の5xxを新しい順に最大10件
	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
	}
}
