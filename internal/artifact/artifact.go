// Package artifact manages the transient solution files a test unit writes
// before comparing them with a baseline.
//
// Paths are keyed by the whole unit identity (model, solver, interface,
// labeling mode) so units of the same model never share a file and can run
// concurrently. Deletion is best effort: a failed delete is logged and never
// turned into a test failure.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/solvermatrix/internal/scenario"
)

// Suffix is appended to every artifact filename.
const Suffix = ".soln.json"

// Key identifies the unit an artifact belongs to.
type Key struct {
	Model       string
	Description string
	Solver      string
	Interface   string
	Labels      scenario.LabelingMode
}

// Manager derives artifact paths under Dir and owns their lifecycle.
type Manager struct {
	// Dir is the working directory artifacts are written under.
	Dir string

	// CleanupExpectedFailures removes the artifact of an expected-failure unit
	// even when its comparison mismatched. Defaults to true in NewManager.
	CleanupExpectedFailures bool

	Logger *slog.Logger
}

// NewManager returns a manager rooted at dir with expected-failure cleanup on.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{Dir: dir, CleanupExpectedFailures: true, Logger: logger}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// Path returns <Dir>/<model>/<description>.<solver>_<interface>_<mode>_labels.soln.json.
//
// Elements are escaped so distinct keys always yield distinct paths: unsafe
// runes and '%' become %XX, and the solver and interface also escape the '.'
// and '_' separators.
func (m *Manager) Path(k Key) string {
	name := fmt.Sprintf("%s.%s_%s_%s_labels%s",
		escape(k.Description, ""), escape(k.Solver, "._"), escape(k.Interface, "._"), k.Labels, Suffix)
	return filepath.Join(m.Dir, escape(k.Model, ""), name)
}

// Exists reports whether a file is present at path.
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ClearStale deletes a leftover artifact from an earlier aborted run.
// It reports whether a file was removed.
func (m *Manager) ClearStale(path string) bool {
	if !m.Exists(path) {
		return false
	}
	m.logger().Debug("removing stale artifact", "path", path)
	return m.Remove(path)
}

// Remove deletes path, logging and swallowing any failure other than the file
// already being gone. It reports whether the file was deleted by this call.
func (m *Manager) Remove(path string) bool {
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		m.logger().Warn("artifact cleanup failed", "path", path, "error", err)
	}
	return false
}

// Retain decides whether the artifact outlives its unit.
//
//   - pipeline errors never retain (partial artifacts are removed)
//   - a normal unit keeps its artifact only when the comparison mismatched
//   - an expected-failure unit keeps a mismatched artifact only when
//     CleanupExpectedFailures is off
func (m *Manager) Retain(status scenario.Status, pipelineFailed, matched bool) bool {
	if pipelineFailed || matched {
		return false
	}
	if status == scenario.StatusExpectedFailure {
		return !m.CleanupExpectedFailures
	}
	return true
}

// Settle removes the artifact at the end of a unit unless retain is set.
func (m *Manager) Settle(path string, retain bool) {
	if retain {
		m.logger().Info("artifact retained for inspection", "path", path)
		return
	}
	m.Remove(path)
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
// The file is written to a temporary sibling and renamed into place so a
// reader never sees a partial artifact.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}

// unsafeRunes are escaped in every path element.
const unsafeRunes = "/\\:*?\"<>|%\x00"

// escape NFC-normalizes s and percent-encodes unsafe runes and those in
// reserved. The empty string encodes as a lone "%", which no other input
// produces.
func escape(s, reserved string) string {
	s = norm.NFC.String(s)
	switch s {
	case "":
		return "%"
	case ".", "..":
		reserved += "."
	}

	var b strings.Builder
	for _, r := range s {
		if !strings.ContainsRune(unsafeRunes, r) && !strings.ContainsRune(reserved, r) {
			b.WriteRune(r)
			continue
		}
		for _, c := range []byte(string(r)) {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
