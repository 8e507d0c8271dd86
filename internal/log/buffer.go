// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// recentCapacity bounds the in-memory ring of recent entries served
	// over the API.
	recentCapacity = 500
	// maxLineBytes drops pathological single lines instead of buffering
	// them.
	maxLineBytes = 64 * 1024
	// maxPartialBytes bounds carry-over between writes when a line is
	// split across Write calls.
	maxPartialBytes = 64 * 1024
)

// BufferedEntry is one parsed log line retained for the recent-logs view.
type BufferedEntry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields"`
}

// BufferMetrics counts lines the buffer refused.
type BufferMetrics struct {
	DroppedPartialOverflow uint64
	DroppedTooLargeLines   uint64
	DroppedIrrelevant      uint64
}

var (
	recentMu      sync.Mutex
	recentEntries []BufferedEntry
	bufferMetrics BufferMetrics
)

// structuredBufferWriter tees JSON log lines into the recent-entries ring.
// Writes may arrive in arbitrary chunks; framing is on newlines.
type structuredBufferWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
}

func (w *structuredBufferWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial.Write(p)
	for {
		data := w.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, data[:idx])
		w.partial.Next(idx + 1)
		w.ingest(line)
	}
	if w.partial.Len() > maxPartialBytes {
		w.partial.Reset()
		recentMu.Lock()
		bufferMetrics.DroppedPartialOverflow++
		recentMu.Unlock()
	}
	return len(p), nil
}

func (w *structuredBufferWriter) ingest(line []byte) {
	if len(line) == 0 {
		return
	}
	if len(line) > maxLineBytes {
		recentMu.Lock()
		bufferMetrics.DroppedTooLargeLines++
		recentMu.Unlock()
		return
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(line, &fields); err != nil {
		return
	}
	if !relevant(fields) {
		recentMu.Lock()
		bufferMetrics.DroppedIrrelevant++
		recentMu.Unlock()
		return
	}

	entry := BufferedEntry{Fields: fields}
	if s, ok := fields["level"].(string); ok {
		entry.Level = s
	}
	if s, ok := fields["message"].(string); ok {
		entry.Message = s
	}
	if s, ok := fields["time"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			entry.Time = ts
		}
	}

	recentMu.Lock()
	recentEntries = append(recentEntries, entry)
	if len(recentEntries) > recentCapacity {
		recentEntries = recentEntries[len(recentEntries)-recentCapacity:]
	}
	recentMu.Unlock()
}

// relevant keeps event-keyed entries above debug level; raw debug chatter
// never reaches the API view.
func relevant(fields map[string]interface{}) bool {
	if lvl, ok := fields["level"].(string); ok && lvl == "debug" {
		return false
	}
	_, hasEvent := fields["event"]
	return hasEvent
}

// GetRecentLogs returns a copy of the retained entries, oldest first.
func GetRecentLogs() []BufferedEntry {
	recentMu.Lock()
	defer recentMu.Unlock()
	out := make([]BufferedEntry, len(recentEntries))
	copy(out, recentEntries)
	return out
}

// ClearRecentLogs empties the ring. Intended for tests.
func ClearRecentLogs() {
	recentMu.Lock()
	defer recentMu.Unlock()
	recentEntries = nil
}

// GetBufferMetrics returns a snapshot of drop counters.
func GetBufferMetrics() BufferMetrics {
	recentMu.Lock()
	defer recentMu.Unlock()
	return bufferMetrics
}
