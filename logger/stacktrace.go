package logger

import (
	"fmt"
	"runtime"
	"strings"
)

// CaptureStacktrace formats up to depth frames, skipping the first skip frames
// (0 is runtime.Callers itself). depth <= 0 means 32.
func CaptureStacktrace(skip int, depth int) string {
	if depth <= 0 {
		depth = 32
	}

	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	lines := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		lines = append(lines, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		if !more || len(lines) >= depth {
			break
		}
	}
	return strings.Join(lines, "\n")
}

var levelOrder = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3, "fatal": 4}

func shouldCaptureStacktrace(level string, cfg ManagerConfig) bool {
	if !cfg.EnableStacktrace {
		return false
	}
	return levelOrder[level] >= levelOrder[cfg.StacktraceLevel]
}
