package useragent

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"go.uber.org/zap"
)

// DefaultDirectives load the console UI that reads the control channel from
// stdin and the file audio source used for greeting playback, and answer
// inbound calls automatically.
var DefaultDirectives = []string{
	"module\t\t\tstdio.so",
	"module\t\t\taufile.so",
	"answermode\t\tauto",
}

// directiveKey identifies a config line for de-duplication. Module lines are
// keyed by the module they load since many of them share the first word.
func directiveKey(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return ""
	}
	if strings.HasPrefix(fields[0], "module") && len(fields) > 1 {
		return fields[0] + " " + fields[1]
	}
	return fields[0]
}

// normalizeDirective collapses the whitespace between a directive's fields.
func normalizeDirective(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// EnsureConfigured creates the working directory and config file when absent
// and makes every directive present. A line with the same key but another
// value, e.g. "answermode manual", is rewritten in place; identical lines are
// left alone.
func (s *Supervisor) EnsureConfigured() error {
	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrConfig, s.cfg.WorkDir, err)
	}
	path := filepath.Join(s.cfg.WorkDir, "config")

	var lines []string
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: open %s: %v", ErrConfig, path, err)
	}

	var added, replaced []string
	for _, d := range s.cfg.Directives {
		key := directiveKey(d)
		if key == "" {
			continue
		}
		want := normalizeDirective(d)
		exact, sameKey := false, -1
		for i, line := range lines {
			if directiveKey(line) != key {
				continue
			}
			if normalizeDirective(line) == want {
				exact = true
				break
			}
			if sameKey < 0 {
				sameKey = i
			}
		}
		switch {
		case exact:
		case sameKey >= 0:
			replaced = append(replaced, lines[sameKey])
			lines[sameKey] = d
		default:
			lines = append(lines, d)
			added = append(added, d)
		}
	}

	if _, err := os.Stat(path); err == nil && len(added) == 0 && len(replaced) == 0 {
		return nil
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrConfig, path, err)
	}
	logger.Info("useragent config updated",
		zap.String("path", path),
		zap.Strings("added", added),
		zap.Strings("replaced", replaced))
	return nil
}
