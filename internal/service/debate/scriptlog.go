package debate

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
)

// ScriptLog appends every persisted line of a session to <dir>/<sessionId>.txt.
type ScriptLog struct {
	dir string
	mu  sync.Mutex
}

// NewScriptLog creates the directory if needed. An empty dir disables logging and returns nil.
func NewScriptLog(dir string) (*ScriptLog, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create script log dir: %w", err)
	}
	return &ScriptLog{dir: dir}, nil
}

// Path is the script file for a session.
func (l *ScriptLog) Path(sessionID string) string {
	return filepath.Join(l.dir, filepath.Base(sessionID)+".txt")
}

// Send writes persisted lines. Write failures are logged and swallowed.
func (l *ScriptLog) Send(_ context.Context, ev debate.Event) error {
	if l == nil || !ev.ShouldPersist || ev.Text == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.Path(ev.SessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[scriptlog] open %s: %v", ev.SessionID, err)
		return nil
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, ev.Text); err != nil {
		log.Printf("[scriptlog] write %s: %v", ev.SessionID, err)
	}
	return nil
}
