package useragent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"go.uber.org/zap"
)

// openControlReader returns the file handed to the agent as stdin. A missing
// path is created as a FIFO. Opening it read-write keeps a reader attached
// for the lifetime of the launch without blocking on a writer.
func openControlReader(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := syscall.Mkfifo(path, 0o600); err != nil && !os.IsExist(err) {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if info.Mode()&os.ModeNamedPipe == 0 {
		// a plain file is read by something else, the agent gets no stdin
		return os.Open(os.DevNull)
	}
	return os.OpenFile(path, os.O_RDWR, 0)
}

// SendCommand writes one line to the control channel without blocking.
func (s *Supervisor) SendCommand(line string) error {
	line = strings.TrimSpace(strings.ReplaceAll(line, "\n", " "))

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()

	f, err := os.OpenFile(s.cfg.ControlPath, os.O_WRONLY|os.O_APPEND|syscall.O_NONBLOCK, 0)
	if err != nil {
		// ENOENT when the channel is missing, ENXIO for a FIFO nobody reads
		return fmt.Errorf("%w: %v", ErrControlChannelUnavailable, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrControlChannelUnavailable, err)
	}
	logger.Debug("useragent command sent", zap.String("command", line))
	return nil
}
