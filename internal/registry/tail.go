package registry

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/platform"
)

// tailPollInterval is the fallback cadence used when fsnotify delivers
// nothing, and the pace at which a silently dead process is noticed.
const tailPollInterval = 500 * time.Millisecond

// Tail follows an agent's log, emitting canonical events through the
// owning adapter until the context is canceled or the agent reaches a
// terminal state. Session ids and terminal events observed in the
// stream are folded back into the record. The channel is closed when
// the tail ends.
func (r *Registry) Tail(ctx context.Context, id string) (<-chan platform.AgentEvent, error) {
	rec, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NewNotFoundError("agent", id).WithCause(errors.ErrAgentNotFound)
	}
	if rec.LogFile == "" {
		return nil, errors.NewAgentError("agent has no log to tail", nil).WithAgentID(id)
	}
	adapter, err := platform.ForName(rec.Platform)
	if err != nil {
		return nil, err
	}

	ch := make(chan platform.AgentEvent, 16)
	go r.tailLoop(ctx, rec, adapter, ch)
	return ch, nil
}

func (r *Registry) tailLoop(ctx context.Context, rec *Record, adapter platform.Adapter, ch chan<- platform.AgentEvent) {
	defer close(ch)

	// Watch the log's directory so both creation and writes are seen.
	// A failed watch degrades to polling.
	var notifications <-chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Debug("fsnotify unavailable, polling only", "error", err.Error())
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(rec.LogFile)); err != nil {
			r.logger.Debug("log watch failed, polling only", "error", err.Error())
		} else {
			notifications = watcher.Events
		}
	}

	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()

	var offset int64
	var partial []byte
	final := false
	for {
		lines, n, err := readNewLines(rec.LogFile, offset, &partial)
		if err != nil && !os.IsNotExist(err) {
			r.logger.Warn("tail read failed", "agent", rec.ID, "error", err.Error())
		}
		offset += n

		for _, line := range lines {
			ev := adapter.ParseLogLine(line)
			if ev == nil {
				continue
			}
			if ev.SessionID != "" {
				r.markSession(rec.ID, ev.SessionID)
			}
			select {
			case ch <- *ev:
			case <-ctx.Done():
				return
			}
			switch ev.Type {
			case platform.EventComplete:
				_, _ = r.markFinished(rec.ID, StatusCompleted, 0)
				return
			case platform.EventError:
				_, _ = r.markFinished(rec.ID, StatusFailed, -1)
				return
			}
		}

		if final {
			return
		}

		select {
		case <-ctx.Done():
			return
		case note, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			if filepath.Clean(note.Name) != filepath.Clean(rec.LogFile) {
				continue
			}
		case <-ticker.C:
			// A dead process with no terminal event still ends the
			// tail, after one last drain for racing writes.
			if cur, _ := r.Refresh(rec.ID); cur == nil || cur.Status.Terminal() {
				final = true
			}
		}
	}
}

// readNewLines returns the complete lines appended past offset and how
// many bytes were consumed. A trailing partial line is carried between
// calls so a line split across writes is never parsed in halves.
func readNewLines(path string, offset int64, partial *[]byte) ([]string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, err
	}
	if len(data) == 0 {
		return nil, 0, nil
	}

	buf := append(*partial, data...)
	var lines []string
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(buf[:i]))
		buf = buf[i+1:]
	}
	*partial = append([]byte(nil), buf...)
	return lines, int64(len(data)), nil
}
