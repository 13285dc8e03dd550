package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	initLogger sync.Once
	shared     *log.Logger
)

// Logger returns the process-wide line logger. Output goes to stdout with
// no prefix so every line is a standalone JSON document.
func Logger() *log.Logger {
	initLogger.Do(func() {
		shared = log.New(os.Stdout, "", 0)
	})
	return shared
}

// LogRequest emits the entry as one JSON line, stamping "ts" when the
// caller has not set it.
func LogRequest(entry map[string]any) {
	if _, ok := entry["ts"]; !ok {
		entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
