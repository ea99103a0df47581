package useragent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"go.uber.org/zap"
)

// Config describes the SIP user-agent process.
type Config struct {
	Binary  string   `env:"UA_BINARY"`
	Args    []string `env:"UA_ARGS"`
	WorkDir string   `env:"UA_WORKDIR"`
	// ControlPath is the FIFO the agent reads commands from on stdin.
	ControlPath string `env:"UA_CONTROL_PATH"`
	// Directives are appended to <WorkDir>/config by EnsureConfigured.
	Directives []string `env:"UA_DIRECTIVES"`
	// RegistrationMarkers are substrings of an output line that confirm registration.
	RegistrationMarkers []string      `env:"UA_REGISTRATION_MARKERS"`
	ShutdownGrace       time.Duration `env:"UA_SHUTDOWN_GRACE"`
}

func (c *Config) withDefaults() {
	if c.Binary == "" {
		c.Binary = "baresip"
	}
	if c.WorkDir == "" {
		c.WorkDir = "/root/.baresip"
	}
	if c.Args == nil {
		c.Args = []string{"-f", c.WorkDir}
	}
	if c.ControlPath == "" {
		c.ControlPath = filepath.Join(c.WorkDir, "ctrl.fifo")
	}
	if c.Directives == nil {
		c.Directives = DefaultDirectives
	}
	if len(c.RegistrationMarkers) == 0 {
		c.RegistrationMarkers = []string{"200 OK"}
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
}

// Hooks are called outside the supervisor lock.
type Hooks struct {
	OnStateChange func(from, to State)
	OnCrash       func(err error)
	OnLine        func(stream, line string)
}

// launch is one run of the process.
type launch struct {
	cmd        *exec.Cmd
	control    *os.File
	startedAt  time.Time
	registered chan struct{}
	exited     chan struct{}
	regOnce    sync.Once
}

// Supervisor owns the SIP user-agent process and its control channel.
type Supervisor struct {
	cfg   Config
	hooks Hooks

	mu           sync.Mutex
	state        State
	current      *launch
	shuttingDown bool
	registeredAt time.Time
	lastErr      error

	ctrlMu sync.Mutex
}

func NewSupervisor(cfg Config, hooks Hooks) *Supervisor {
	cfg.withDefaults()
	return &Supervisor{cfg: cfg, hooks: hooks, state: StateStopped}
}

// Config returns the effective configuration.
func (s *Supervisor) Config() Config {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether a process is starting or registered.
func (s *Supervisor) Running() bool {
	st := s.State()
	return st == StateStarting || st == StateRegistered
}

// setState must be called with s.mu held. It returns a func that fires the
// hook once the lock is released.
func (s *Supervisor) setState(to State) func() {
	from := s.state
	if from == to {
		return func() {}
	}
	if !CanTransition(from, to) {
		logger.Warn("useragent: ignoring invalid transition",
			zap.String("from", string(from)), zap.String("to", string(to)))
		return func() {}
	}
	s.state = to
	logger.Info("useragent state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	return func() {
		if s.hooks.OnStateChange != nil {
			s.hooks.OnStateChange(from, to)
		}
	}
}

// Start launches the process unless one is already starting or registered.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.state == StateStarting || s.state == StateRegistered {
		s.mu.Unlock()
		return nil
	}

	l, err := s.spawn()
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		logger.Error("useragent start failed", zap.Error(err))
		return err
	}
	s.current = l
	s.shuttingDown = false
	s.registeredAt = time.Time{}
	s.lastErr = nil
	notify := s.setState(StateStarting)
	s.mu.Unlock()
	notify()

	logger.Info("useragent started",
		zap.String("binary", s.cfg.Binary),
		zap.Strings("args", s.cfg.Args),
		zap.Int("pid", l.cmd.Process.Pid))
	return nil
}

// spawn must be called with s.mu held.
func (s *Supervisor) spawn() (*launch, error) {
	bin, err := exec.LookPath(s.cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessStart, err)
	}
	control, err := openControlReader(s.cfg.ControlPath)
	if err != nil {
		return nil, fmt.Errorf("%w: control channel: %v", ErrProcessStart, err)
	}

	cmd := exec.Command(bin, s.cfg.Args...)
	cmd.Stdin = control
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("%w: %v", ErrProcessStart, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("%w: %v", ErrProcessStart, err)
	}
	if err := cmd.Start(); err != nil {
		control.Close()
		return nil, fmt.Errorf("%w: %v", ErrProcessStart, err)
	}

	l := &launch{
		cmd:        cmd,
		control:    control,
		startedAt:  time.Now(),
		registered: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	var pumps sync.WaitGroup
	pumps.Add(2)
	go s.pump(l, &pumps, "stdout", stdout)
	go s.pump(l, &pumps, "stderr", stderr)
	go s.watch(l, &pumps)
	return l, nil
}

// pump logs every output line and watches for registration.
func (s *Supervisor) pump(l *launch, wg *sync.WaitGroup, stream string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("useragent output", zap.String("stream", stream), zap.String("line", line))
		if s.hooks.OnLine != nil {
			s.hooks.OnLine(stream, line)
		}
		if s.isRegistration(line) {
			l.regOnce.Do(func() { s.markRegistered(l) })
		}
	}
}

func (s *Supervisor) isRegistration(line string) bool {
	for _, marker := range s.cfg.RegistrationMarkers {
		if marker != "" && strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func (s *Supervisor) markRegistered(l *launch) {
	s.mu.Lock()
	if s.current != l || s.state != StateStarting {
		s.mu.Unlock()
		return
	}
	s.registeredAt = time.Now()
	close(l.registered)
	notify := s.setState(StateRegistered)
	s.mu.Unlock()
	notify()
}

// watch waits for the process to exit and turns an unrequested exit into Failed.
func (s *Supervisor) watch(l *launch, pumps *sync.WaitGroup) {
	// all reads must finish before Wait closes the pipes
	pumps.Wait()
	waitErr := l.cmd.Wait()
	l.control.Close()

	s.mu.Lock()
	close(l.exited)
	if s.current != l || s.shuttingDown {
		s.mu.Unlock()
		return
	}
	crash := fmt.Errorf("%w: %v", ErrProcessCrash, exitReason(waitErr))
	s.lastErr = crash
	notify := s.setState(StateFailed)
	s.mu.Unlock()
	notify()

	logger.Error("useragent exited unexpectedly", zap.Error(crash), zap.Int("pid", l.cmd.Process.Pid))
	if s.hooks.OnCrash != nil {
		s.hooks.OnCrash(crash)
	}
}

func exitReason(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}

// AwaitRegistration blocks the caller only, until registration is observed,
// the process exits, timeout elapses or ctx is done.
func (s *Supervisor) AwaitRegistration(ctx context.Context, timeout time.Duration) bool {
	s.mu.Lock()
	l := s.current
	state := s.state
	s.mu.Unlock()
	if state == StateRegistered {
		return true
	}
	if l == nil || state != StateStarting {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.registered:
		return true
	case <-l.exited:
		// registration may have raced the exit
		select {
		case <-l.registered:
			return true
		default:
			return false
		}
	case <-timer.C:
		logger.Warn("useragent registration not observed", zap.Duration("timeout", timeout))
		return false
	case <-ctx.Done():
		return false
	}
}

// Shutdown terminates the process: SIGTERM, then SIGKILL after the grace
// period or when ctx is done. The state always ends as Stopped.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	l := s.current
	s.shuttingDown = true
	s.mu.Unlock()

	var err error
	if l != nil {
		err = s.terminate(ctx, l)
	}

	s.mu.Lock()
	s.current = nil
	notify := s.setState(StateStopped)
	s.mu.Unlock()
	notify()
	return err
}

func (s *Supervisor) terminate(ctx context.Context, l *launch) error {
	select {
	case <-l.exited:
		return nil
	default:
	}
	pid := l.cmd.Process.Pid
	// negative pid signals the whole process group
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		logger.Warn("useragent SIGTERM failed", zap.Error(err), zap.Int("pid", pid))
	}

	timer := time.NewTimer(s.cfg.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-l.exited:
		logger.Info("useragent stopped", zap.Int("pid", pid))
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	logger.Warn("useragent did not exit after SIGTERM, killing", zap.Int("pid", pid))
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill useragent: %w", err)
	}
	<-l.exited
	return nil
}
