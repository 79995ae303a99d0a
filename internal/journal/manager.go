// Package journal maintains per-developer work session ledgers.
//
// Each developer owns a directory of numbered markdown files
// (journal-1.md, journal-2.md, ...) under <data_dir>/journals/<name>.
// The highest-numbered file is the active journal; it rolls over to the
// next number once it reaches the configured line count. Session
// numbers are global per developer: the next number is derived by
// counting session headers across every journal file, so numbers stay
// strictly increasing across rotation boundaries.
//
// Files are append-only. Rotation never rewrites an existing file.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gantryhq/gantry/internal/developer"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/logging"
)

// JournalsDir is the directory under the data dir that holds one
// subdirectory per developer.
const JournalsDir = "journals"

// DefaultRotateLines is the line count at which the active journal
// rolls over when no explicit threshold is configured.
const DefaultRotateLines = 2000

// fileNameRe matches numbered journal files and captures the number.
var fileNameRe = regexp.MustCompile(`^journal-([0-9]+)\.md$`)

// Status summarizes a developer's journal for display.
type Status struct {
	// Developer is the journal owner.
	Developer string
	// FileCount is how many journal files exist.
	FileCount int
	// ActiveFile is the base name of the highest-numbered file, empty
	// when the developer has no journal yet.
	ActiveFile string
	// ActiveLines is the current line count of the active file.
	ActiveLines int
	// RotateLines is the threshold at which the active file rolls over.
	RotateLines int
	// Sessions is the total number of recorded sessions.
	Sessions int
	// NextNumber is the number the next session will receive.
	NextNumber int
	// LastSession is the most recently recorded session, nil when none.
	LastSession *Session
}

// Manager reads and appends developer journals. All exported methods
// are safe for concurrent use within one process; cross-process safety
// relies on each developer owning a disjoint directory.
type Manager struct {
	dataDir     string
	rotateLines int
	logger      *logging.Logger
	bus         *event.Bus
	mu          sync.RWMutex
}

// NewManager creates a journal manager rooted at the given data
// directory. rotateLines <= 0 selects DefaultRotateLines. Directories
// are created lazily on first write.
func NewManager(dataDir string, rotateLines int, logger *logging.Logger, bus *event.Bus) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if rotateLines <= 0 {
		rotateLines = DefaultRotateLines
	}
	return &Manager{
		dataDir:     dataDir,
		rotateLines: rotateLines,
		logger:      logger,
		bus:         bus,
	}
}

// JournalDir returns the directory holding a developer's journal files.
func (m *Manager) JournalDir(dev string) string {
	return filepath.Join(m.dataDir, JournalsDir, dev)
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// JournalFiles returns the developer's journal files as full paths in
// ascending file-number order. A developer with no journal yet yields
// an empty list.
func (m *Manager) JournalFiles(dev string) ([]string, error) {
	if err := developer.ValidateName(dev); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.journalFiles(dev)
}

// ActiveJournal returns the path of the highest-numbered journal file,
// or "" when the developer has no journal yet.
func (m *Manager) ActiveJournal(dev string) (string, error) {
	if err := developer.ValidateName(dev); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	files, err := m.journalFiles(dev)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[len(files)-1], nil
}

// CreateJournalFile creates journal-<number>.md for the developer and
// returns its path. Creating a file that already exists fails.
func (m *Manager) CreateJournalFile(dev string, number int) (string, error) {
	if err := developer.ValidateName(dev); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createJournalFile(dev, number)
}

// RotateIfNeeded returns the journal file the next session should be
// appended to, creating journal-1.md when the developer has none and
// rolling over to the next number once the active file has reached the
// line threshold. The second return reports whether a new file was
// created.
func (m *Manager) RotateIfNeeded(dev string) (string, bool, error) {
	if err := developer.ValidateName(dev); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotateIfNeeded(dev)
}

// AddSession records a completed work session. It rotates the journal
// first, assigns the next global session number by counting session
// headers across every journal file, then appends the formatted block
// to the active file. The returned session carries the assigned number.
func (m *Manager) AddSession(dev string, s Session) (*Session, error) {
	if err := developer.ValidateName(dev); err != nil {
		return nil, err
	}
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return nil, errors.NewValidationError("session title cannot be empty").WithField("title")
	}
	if strings.ContainsAny(s.Title, "\r\n") {
		return nil, errors.NewValidationError("session title cannot span multiple lines").
			WithField("title").WithValue(s.Title)
	}
	if strings.ContainsAny(s.Commit, " \t\r\n") {
		return nil, errors.NewValidationError("commit hash cannot contain whitespace").
			WithField("commit").WithValue(s.Commit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path, rotated, err := m.rotateIfNeeded(dev)
	if err != nil {
		return nil, err
	}

	files, err := m.journalFiles(dev)
	if err != nil {
		return nil, err
	}
	total, err := countSessions(files)
	if err != nil {
		return nil, errors.NewJournalError("failed to count existing sessions", err).WithDeveloper(dev)
	}
	s.Number = total + 1

	if s.Date.IsZero() {
		now := time.Now().UTC()
		s.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	name := filepath.Base(path)
	if err := appendFile(path, []byte(s.formatBlock())); err != nil {
		return nil, errors.NewJournalError("failed to append session", err).
			WithDeveloper(dev).WithFile(name)
	}

	m.logger.Info("journal session added",
		"developer", dev, "session", s.Number, "file", name, "rotated", rotated)
	m.publish(event.NewJournalSessionEvent(dev, s.Number, name, rotated))
	return &s, nil
}

// Sessions parses all recorded sessions back out of the developer's
// journal files in ascending file order. Unreadable files are skipped
// with a warning.
func (m *Manager) Sessions(dev string) ([]Session, error) {
	if err := developer.ValidateName(dev); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	files, err := m.journalFiles(dev)
	if err != nil {
		return nil, err
	}
	return m.readSessions(dev, files), nil
}

// Status summarizes the developer's journal. A developer with no
// journal yet gets an empty status with NextNumber 1 rather than an
// error.
func (m *Manager) Status(dev string) (*Status, error) {
	if err := developer.ValidateName(dev); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &Status{Developer: dev, RotateLines: m.rotateLines, NextNumber: 1}

	files, err := m.journalFiles(dev)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return st, nil
	}

	st.FileCount = len(files)
	active := files[len(files)-1]
	st.ActiveFile = filepath.Base(active)
	lines, err := countLines(active)
	if err != nil {
		return nil, errors.NewJournalError("failed to measure journal file", err).
			WithDeveloper(dev).WithFile(st.ActiveFile)
	}
	st.ActiveLines = lines

	sessions := m.readSessions(dev, files)
	st.Sessions = len(sessions)
	st.NextNumber = len(sessions) + 1
	if len(sessions) > 0 {
		last := sessions[len(sessions)-1]
		st.LastSession = &last
	}
	return st, nil
}

// Internal helpers (callers hold the manager mutex).

func (m *Manager) journalFiles(dev string) ([]string, error) {
	dir := m.JournalDir(dev)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewJournalError("failed to read journal directory", err).WithDeveloper(dev)
	}

	type numbered struct {
		number int
		name   string
	}
	var found []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := fileNameRe.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		number, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{number: number, name: e.Name()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].number < found[j].number })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = filepath.Join(dir, f.name)
	}
	return paths, nil
}

func (m *Manager) createJournalFile(dev string, number int) (string, error) {
	if number < 1 {
		return "", errors.NewValidationError("journal file number must be positive").
			WithField("number").WithValue(strconv.Itoa(number))
	}
	dir := m.JournalDir(dev)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewJournalError("failed to create journal directory", err).WithDeveloper(dev)
	}

	name := fmt.Sprintf("journal-%d.md", number)
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", errors.NewAlreadyExistsError("journal file", name).WithCause(err)
		}
		return "", errors.NewJournalError("failed to create journal file", err).
			WithDeveloper(dev).WithFile(name)
	}
	if _, err := fmt.Fprintf(f, "# Journal %d\n\n", number); err != nil {
		f.Close()
		return "", errors.NewJournalError("failed to write journal header", err).
			WithDeveloper(dev).WithFile(name)
	}
	if err := f.Close(); err != nil {
		return "", errors.NewJournalError("failed to close journal file", err).
			WithDeveloper(dev).WithFile(name)
	}

	m.logger.Info("journal file created", "developer", dev, "file", name)
	return path, nil
}

func (m *Manager) rotateIfNeeded(dev string) (string, bool, error) {
	files, err := m.journalFiles(dev)
	if err != nil {
		return "", false, err
	}
	if len(files) == 0 {
		path, err := m.createJournalFile(dev, 1)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	}

	active := files[len(files)-1]
	lines, err := countLines(active)
	if err != nil {
		return "", false, errors.NewJournalError("failed to measure journal file", err).
			WithDeveloper(dev).WithFile(filepath.Base(active))
	}
	if lines < m.rotateLines {
		return active, false, nil
	}

	number := fileNumber(filepath.Base(active))
	path, err := m.createJournalFile(dev, number+1)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// readSessions parses sessions from the given files, skipping
// unreadable ones with a warning.
func (m *Manager) readSessions(dev string, files []string) []Session {
	var sessions []Session
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("skipping unreadable journal file",
				"developer", dev, "file", filepath.Base(path), "error", err)
			continue
		}
		sessions = append(sessions, parseSessions(string(data))...)
	}
	return sessions
}

// fileNumber extracts the number from a journal file name, or -1 when
// the name does not match the journal pattern.
func fileNumber(name string) int {
	match := fileNameRe.FindStringSubmatch(name)
	if match == nil {
		return -1
	}
	number, err := strconv.Atoi(match[1])
	if err != nil {
		return -1
	}
	return number
}

// countSessions counts session headers across the given files. Any
// unreadable file fails the count because skipping one could hand out
// a duplicate session number.
func countSessions(files []string) (int, error) {
	total := 0
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if sessionHeaderRe.MatchString(scanner.Text()) {
				total++
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// countLines counts the lines currently in a file.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	return lines, scanner.Err()
}

// appendFile appends data to path, creating the file if needed.
func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
