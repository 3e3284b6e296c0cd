package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	enabled     = os.Getenv("ORCH_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	logMutex    sync.Mutex

	eventLogPath string
	sessionID    string
	sessionOnce  sync.Once
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// SetEventLog sets the file LogEvent appends to. An empty path disables the
// event log.
func SetEventLog(path string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	eventLogPath = path
}

// EventLogPath returns the configured event log location.
func EventLogPath() string {
	logMutex.Lock()
	defer logMutex.Unlock()
	return eventLogPath
}

// SessionID identifies this process in the event log. ORCH_SESSION_ID wins,
// otherwise a random UUID is generated once per process.
func SessionID() string {
	sessionOnce.Do(func() {
		sessionID = os.Getenv("ORCH_SESSION_ID")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
	})
	return sessionID
}

// LogEvent writes an event to the event log.
// Format: TIMESTAMP|EVENT_CODE|SPEC_ID|AGENT_ID|SESSION_ID|DETAILS
func LogEvent(eventCode, specID, details string) {
	LogEventWithContext(eventCode, specID, "", "", details)
}

// LogEventWithContext writes an event with full context
func LogEventWithContext(eventCode, specID, agentID, session, details string) {
	logPath := EventLogPath()
	if logPath == "" {
		return
	}

	if specID == "" {
		specID = "none"
	}
	if agentID == "" {
		agentID = os.Getenv("ORCH_AGENT_ID")
		if agentID == "" {
			agentID = os.Getenv("USER")
			if agentID == "" {
				agentID = "unknown"
			}
		}
	}
	if session == "" {
		session = SessionID()
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s|%s|%s|%s|%s|%s\n",
		timestamp, eventCode, specID, agentID, session, details)

	logMutex.Lock()
	defer logMutex.Unlock()

	_ = os.MkdirAll(filepath.Dir(logPath), 0o755)

	// #nosec G304 -- path is set by the CLI from the project root
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// Logging must never interrupt an operation.
		return
	}
	defer file.Close()

	_, _ = file.WriteString(entry)
}
