package boardservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"

	"github.com/starford/taskboard/internal/templates"
)

const agentFilePerms = 0o644

// InitResult tells which files Init wrote.
type InitResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
	Agent   string   `json:"agent,omitempty"`
}

// Init writes the starter files that do not exist yet. When agentFile is set,
// the task management section is appended to it once.
func (s *Service) Init(_ context.Context, agentFile string) (*InitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &InitResult{Created: []string{}, Skipped: []string{}}
	starters := []struct {
		name string
		load func() ([]byte, error)
	}{
		{s.files.Active, templates.Active},
		{s.files.Archive, templates.Archive},
	}
	for _, st := range starters {
		exists, err := s.store.Exists(st.name)
		if err != nil {
			return nil, err
		}
		if exists {
			res.Skipped = append(res.Skipped, st.name)
			continue
		}
		data, err := st.load()
		if err != nil {
			return nil, fmt.Errorf("boardservice: load template: %w", err)
		}
		if err := s.store.Write(st.name, data); err != nil {
			return nil, fmt.Errorf("boardservice: write %s: %w", st.name, err)
		}
		res.Created = append(res.Created, st.name)
		s.logger.Info("board file created", "file", st.name)
	}

	if agentFile != "" {
		appended, err := appendAgentSection(agentFile)
		if err != nil {
			return nil, err
		}
		if appended {
			res.Agent = agentFile
		}
	}
	return res, nil
}

// appendAgentSection adds the task management section to an agent
// instruction file unless the marker is already present.
func appendAgentSection(path string) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("boardservice: read %s: %w", path, err)
	}
	if bytes.Contains(existing, []byte(templates.AgentMarker)) {
		return false, nil
	}
	section, err := templates.AgentSection()
	if err != nil {
		return false, fmt.Errorf("boardservice: load template: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		buf.WriteByte('\n')
	}
	if len(existing) == 0 {
		section = bytes.TrimLeft(section, "\n")
	}
	buf.Write(section)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return false, fmt.Errorf("boardservice: write %s: %w", path, err)
	}
	if existing == nil {
		if err := os.Chmod(path, agentFilePerms); err != nil {
			return false, fmt.Errorf("boardservice: chmod %s: %w", path, err)
		}
	}
	return true, nil
}
