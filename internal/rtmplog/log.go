// Logging, in the teacher's style: a mutex-guarded timestamped line
// logger gated by environment variables, rather than a structured logging
// library. The teacher (AgustinSRG-rtmp-server) doesn't import one either,
// so this is the one ambient concern this module deliberately keeps on the
// standard library (see DESIGN.md).
//
// Grounded on log.go: LogLine/LogWarning/LogInfo/LogError/LogRequest/
// LogDebug/LogDebugSession, generalized from a package-global logger to a
// Logger value so a publisher client and a server can each carry their own
// debug/request gating. All Loggers still write through one package-level
// mutex, so lines from different Loggers do not interleave.
package rtmplog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var mu sync.Mutex

func writeLine(line string) {
	tm := time.Now()
	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("[%s] %s\n", tm.Format("2006-01-02 15:04:05"), line)
}

// Logger is a connection- or process-scoped logging handle.
type Logger struct {
	debugEnabled   bool
	requestEnabled bool
}

// New builds a Logger reading LOG_DEBUG/LOG_REQUESTS the same way the
// teacher's package-level flags did.
func New() *Logger {
	return &Logger{
		debugEnabled:   os.Getenv("LOG_DEBUG") == "YES",
		requestEnabled: os.Getenv("LOG_REQUESTS") != "NO",
	}
}

func (l *Logger) Info(line string) {
	writeLine("[INFO] " + line)
}

func (l *Logger) Warning(line string) {
	writeLine("[WARNING] " + line)
}

func (l *Logger) Error(err error) {
	writeLine("[ERROR] " + err.Error())
}

// Session logs a line tagged with a connection id and remote address, for
// the per-connection request log.
func (l *Logger) Session(sessionID uint64, remoteAddr, line string) {
	if !l.requestEnabled {
		return
	}
	writeLine(fmt.Sprintf("[SESSION] #%d (%s) %s", sessionID, remoteAddr, line))
}

func (l *Logger) Debug(line string) {
	if l.debugEnabled {
		writeLine("[DEBUG] " + line)
	}
}

func (l *Logger) DebugSession(sessionID uint64, remoteAddr, line string) {
	if l.debugEnabled {
		writeLine(fmt.Sprintf("[DEBUG] #%d (%s) %s", sessionID, remoteAddr, line))
	}
}
