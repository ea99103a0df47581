package recorder

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Capture is an in-flight capture process.
type Capture interface {
	// Done is closed once the capture has exited.
	Done() <-chan struct{}
	// Err is the exit error, valid after Done is closed.
	Err() error
	Kill() error
}

// Launcher starts a capture of at most max into path. It must not block on
// the capture itself.
type Launcher interface {
	Launch(path string, max time.Duration) (Capture, error)
}

// DefaultArgs records 8 kHz mono 16-bit PCM, the PCMU transport rate.
var DefaultArgs = []string{"-q", "-D", "{device}", "-f", "S16_LE", "-r", "8000", "-c", "1", "-d", "{seconds}", "{path}"}

// ExecLauncher runs an external capture tool, arecord by default.
// Args may use the {device}, {seconds} and {path} placeholders.
type ExecLauncher struct {
	Tool   string
	Device string
	Args   []string
}

func (l *ExecLauncher) Launch(path string, max time.Duration) (Capture, error) {
	tool := l.Tool
	if tool == "" {
		tool = "arecord"
	}
	bin, err := exec.LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
	}
	device := l.Device
	if device == "" {
		device = "default"
	}
	template := l.Args
	if len(template) == 0 {
		template = DefaultArgs
	}
	seconds := int(max.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	r := strings.NewReplacer("{device}", device, "{seconds}", fmt.Sprint(seconds), "{path}", path)
	args := make([]string, len(template))
	for i, a := range template {
		args[i] = r.Replace(a)
	}

	cmd := exec.Command(bin, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
	}
	c := &execCapture{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		if err != nil && stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	}()
	return c, nil
}

type execCapture struct {
	cmd  *exec.Cmd
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func (c *execCapture) Done() <-chan struct{} { return c.done }

func (c *execCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *execCapture) Kill() error {
	err := syscall.Kill(-c.cmd.Process.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
