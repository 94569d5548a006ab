package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"entrytest/internal/auth"

	"github.com/go-chi/chi/v5/middleware"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

type ctxKey struct{}

// requestInfo is filled in by inner middleware and read back when the
// request log line is written.
type requestInfo struct {
	adminID int64
}

type Collector struct {
	db *sql.DB

	mu           sync.RWMutex
	requestStats map[key]stat
	startedAt    time.Time
}

func NewCollector(db *sql.DB) *Collector {
	return &Collector{
		db:           db,
		requestStats: make(map[key]stat),
		startedAt:    time.Now(),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, info)))

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)
		c.record(key{Method: r.Method, Path: path, Status: rec.status}, latencyMS)

		entry := map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
			"admin_id":   info.adminID,
			"session_id": extractSessionID(r.URL.Path),
			"method":     r.Method,
			"path":       path,
			"status":     rec.status,
			"latency_ms": latencyMS,
			"remote_ip":  strings.TrimSpace(r.RemoteAddr),
		}
		b, _ := json.Marshal(entry)
		log.Printf("%s", string(b))
	})
}

// AnnotateAdmin copies the authenticated admin into the request log line.
// Mount it after auth.RequireAuth.
func (c *Collector) AnnotateAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(ctxKey{}).(*requestInfo); ok {
			if a, ok := auth.CurrentAdmin(r.Context()); ok {
				info.adminID = a.ID
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Collector) record(k key, latencyMS float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.requestStats[k]
	s.Count++
	s.LatencyMS += latencyMS
	c.requestStats[k] = s
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	statsCopy := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		statsCopy[k] = v
	}
	startedAt := c.startedAt
	c.mu.RUnlock()

	keys := make([]key, 0, len(statsCopy))
	for k := range statsCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	var sb strings.Builder
	sb.WriteString("# entrytest observability metrics\n")
	sb.WriteString("# TYPE entrytest_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("entrytest_uptime_seconds %.0f\n", time.Since(startedAt).Seconds()))

	sb.WriteString("# TYPE entrytest_http_requests_total counter\n")
	sb.WriteString("# TYPE entrytest_http_request_latency_ms_sum counter\n")
	sb.WriteString("# TYPE entrytest_http_request_latency_ms_avg gauge\n")
	for _, k := range keys {
		s := statsCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", k.Method, k.Path, k.Status)
		sb.WriteString(fmt.Sprintf("entrytest_http_requests_total{%s} %d\n", labels, s.Count))
		sb.WriteString(fmt.Sprintf("entrytest_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS))
		avg := 0.0
		if s.Count > 0 {
			avg = s.LatencyMS / float64(s.Count)
		}
		sb.WriteString(fmt.Sprintf("entrytest_http_request_latency_ms_avg{%s} %.3f\n", labels, avg))
	}

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE entrytest_db_open_connections gauge\n")
		sb.WriteString(fmt.Sprintf("entrytest_db_open_connections %d\n", dbs.OpenConnections))
		sb.WriteString("# TYPE entrytest_db_in_use_connections gauge\n")
		sb.WriteString(fmt.Sprintf("entrytest_db_in_use_connections %d\n", dbs.InUse))
		sb.WriteString("# TYPE entrytest_db_wait_count counter\n")
		sb.WriteString(fmt.Sprintf("entrytest_db_wait_count %d\n", dbs.WaitCount))

		if counts, err := c.studentStatusCounts(r.Context()); err != nil {
			log.Printf("metrics: student counts: %v", err)
		} else {
			sb.WriteString("# TYPE entrytest_students gauge\n")
			for _, status := range []string{"pending", "started", "completed"} {
				sb.WriteString(fmt.Sprintf("entrytest_students{status=\"%s\"} %d\n", status, counts[status]))
			}
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

func (c *Collector) studentStatusCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM students GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64, 3)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// normalizedPath folds numeric segments so the label set stays small.
func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func extractSessionID(path string) int64 {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "sessions" {
			if id, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}
