package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

var (
	mu           sync.Mutex
	currentLevel = INFO
	sink         *fileSink
)

// fileSink mirrors every log entry as a JSON line into a file, with
// optional size- and age-based rotation.
type fileSink struct {
	file        *os.File
	path        string
	rotate      bool
	maxBytes    int64
	maxAgeDays  int
	size        int64
	lastRotated time.Time
}

type logEntry struct {
	Level     string                 `json:"level"`
	Timestamp string                 `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

// EnableFileLogging opens (or creates) the log file at path. A zero
// maxSizeMB or maxAgeDays disables the corresponding rotation trigger.
func EnableFileLogging(path string, rotate bool, maxSizeMB, maxAgeDays int) error {
	mu.Lock()
	defer mu.Unlock()

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	var size int64
	if stat, err := file.Stat(); err == nil {
		size = stat.Size()
	}

	if sink != nil && sink.file != nil {
		sink.file.Close()
	}

	sink = &fileSink{
		file:        file,
		path:        path,
		rotate:      rotate,
		maxBytes:    int64(maxSizeMB) * 1024 * 1024,
		maxAgeDays:  maxAgeDays,
		size:        size,
		lastRotated: time.Now(),
	}

	log.Println("File logging enabled:", path)
	return nil
}

func DisableFileLogging() {
	mu.Lock()
	defer mu.Unlock()

	if sink != nil && sink.file != nil {
		sink.file.Close()
		sink = nil
	}
}

func (s *fileSink) shouldRotate() bool {
	if !s.rotate {
		return false
	}
	if s.maxBytes > 0 && s.size >= s.maxBytes {
		return true
	}
	if s.maxAgeDays > 0 {
		now := time.Now()
		if now.YearDay() != s.lastRotated.YearDay() || now.Year() != s.lastRotated.Year() {
			return true
		}
	}
	return false
}

func (s *fileSink) doRotate() error {
	s.file.Close()

	rotated := fmt.Sprintf("%s.%s", s.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(s.path, rotated); err != nil {
		// Reopen the original so logging keeps working
		if file, openErr := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); openErr == nil {
			s.file = file
		}
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create new log file: %w", err)
	}

	s.file = file
	s.size = 0
	s.lastRotated = time.Now()

	go s.cleanOldFiles()

	return nil
}

func (s *fileSink) cleanOldFiles() {
	if s.maxAgeDays <= 0 {
		return
	}

	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	cutoff := time.Now().AddDate(0, 0, -s.maxAgeDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), base+".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}

func logMessage(level LogLevel, component, message string, fields map[string]interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if level < currentLevel {
		return
	}

	entry := logEntry{
		Level:     levelNames[level],
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Component: component,
		Message:   message,
		Fields:    fields,
	}

	if sink != nil {
		if sink.shouldRotate() {
			if err := sink.doRotate(); err != nil {
				log.Printf("Failed to rotate log file: %v", err)
			}
		}
		if data, err := json.Marshal(entry); err == nil {
			if n, writeErr := sink.file.WriteString(string(data) + "\n"); writeErr == nil {
				sink.size += int64(n)
			}
		}
	}

	var fieldStr string
	if len(fields) > 0 {
		fieldStr = " " + formatFields(fields)
	}

	log.Printf("[%s] [%s]%s %s%s",
		entry.Timestamp,
		entry.Level,
		formatComponent(component),
		message,
		fieldStr,
	)

	if level == FATAL {
		os.Exit(1)
	}
}

func formatComponent(component string) string {
	if component == "" {
		return ""
	}
	return " " + component + ":"
}

func formatFields(fields map[string]interface{}) string {
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func Debug(message string) { logMessage(DEBUG, "", message, nil) }

func DebugC(component, message string) { logMessage(DEBUG, component, message, nil) }

func Info(message string) { logMessage(INFO, "", message, nil) }

func InfoC(component, message string) { logMessage(INFO, component, message, nil) }

func Warn(message string) { logMessage(WARN, "", message, nil) }

func WarnC(component, message string) { logMessage(WARN, component, message, nil) }

func Error(message string) { logMessage(ERROR, "", message, nil) }

func ErrorC(component, message string) { logMessage(ERROR, component, message, nil) }

func FatalC(component, message string) { logMessage(FATAL, component, message, nil) }

func DebugCF(component, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func InfoCF(component, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func WarnCF(component, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}

func FatalCF(component, message string, fields map[string]interface{}) {
	logMessage(FATAL, component, message, fields)
}
