// Package obs holds the observability primitives shared across the
// service: the structured logger and the Prometheus metrics.
package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const serviceName = "taskhub-api"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line-oriented logger. Every emitter in the
// service writes through it so concurrent output stays one JSON object
// per line.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Info emits one JSON log line at info level with the given fields.
func Info(msg string, fields map[string]any) { logLine("info", msg, fields) }

// Error emits one JSON log line at error level with the given fields.
func Error(msg string, fields map[string]any) { logLine("error", msg, fields) }

// logLine stamps the entry with timestamp, level and service identity.
// Caller fields never override the stamped keys.
func logLine(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg
	entry["service"] = serviceName

	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed","service":"` + serviceName + `"}`)
		return
	}
	Logger().Println(string(data))
}
