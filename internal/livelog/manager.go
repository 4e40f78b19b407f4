package livelog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// LiveLog is the running record of one in-flight job.
type LiveLog struct {
	FilePath   string
	State      string
	Logs       string
	StartTime  time.Time
	LastUpdate time.Time
}

// Manager tracks jobs that have started but not finished, so an interrupted
// run can say which files were still being worked on.
type Manager struct {
	mu   sync.RWMutex
	logs map[string]*LiveLog // key: file path
}

func NewManager() *Manager {
	return &Manager{logs: make(map[string]*LiveLog)}
}

// StartTask creates a new live log entry for a task
func (m *Manager) StartTask(filePath, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.logs[filePath] = &LiveLog{
		FilePath:   filePath,
		State:      state,
		StartTime:  now,
		LastUpdate: now,
	}
}

// SetState records a state transition and appends it to the task's log.
func (m *Manager) SetState(filePath, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, exists := m.logs[filePath]; exists {
		l.Logs += fmt.Sprintf("%s -> %s (+%s)\n", l.State, state, time.Since(l.StartTime).Round(time.Millisecond))
		l.State = state
		l.LastUpdate = time.Now()
	}
}

// EndTask removes a task's live log (called when task completes)
func (m *Manager) EndTask(filePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.logs, filePath)
}

// Active returns copies of all in-flight entries ordered by path.
func (m *Manager) Active() []LiveLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]LiveLog, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

// Describe renders the in-flight set as "path [state]" lines. With verbose
// each entry is followed by its transition log, indented.
func (m *Manager) Describe(verbose bool) string {
	var b strings.Builder
	for _, l := range m.Active() {
		fmt.Fprintf(&b, "%s [%s]\n", l.FilePath, l.State)
		if verbose && l.Logs != "" {
			for _, line := range strings.Split(strings.TrimRight(l.Logs, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	return b.String()
}
