package synthesizer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/sirupsen/logrus"
)

// LocalEngine 本地TTS引擎
type LocalEngine string

const (
	LocalEngineEspeak LocalEngine = "espeak"
	LocalEnginePico   LocalEngine = "pico"
)

// LocalConfig 本地TTS配置
type LocalConfig struct {
	Engine   LocalEngine `env:"LOCAL_TTS_ENGINE"`
	Language string      `env:"LOCAL_TTS_LANGUAGE"`
	Speed    float64     `env:"LOCAL_TTS_SPEED"`
	// Command 自定义命令, 两个 %s 依次为文本和输出路径
	Command string `env:"LOCAL_TTS_COMMAND"`
}

// LocalService 调用本机命令行合成器生成 wav
type LocalService struct {
	opt       LocalConfig
	outputDir string
	bin       string
}

func NewLocalService(opt LocalConfig, outputDir string) (*LocalService, error) {
	if opt.Engine == "" {
		opt.Engine = LocalEngineEspeak
	}
	if opt.Speed <= 0 {
		opt.Speed = 1.0
	}
	s := &LocalService{opt: opt, outputDir: outputDir}

	var bin string
	switch {
	case opt.Command != "":
		bin = "sh"
	case opt.Engine == LocalEngineEspeak:
		bin = "espeak"
	case opt.Engine == LocalEnginePico:
		bin = "pico2wave"
	default:
		return nil, fmt.Errorf("不支持的TTS引擎: %s", opt.Engine)
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("TTS命令 '%s' 不可用: %w", bin, err)
	}
	s.bin = path
	return s, nil
}

func (s *LocalService) Provider() Vendor {
	return VendorLocal
}

func (s *LocalService) CacheKey(text string) string {
	return "local-" + digest(string(s.opt.Engine), s.opt.Language, fmt.Sprint(s.opt.Speed), s.opt.Command, text)
}

func (s *LocalService) Synthesize(ctx context.Context, text string) (*media.Artifact, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, err
	}
	out := filepath.Join(s.outputDir, s.CacheKey(text)+".wav")

	var cmd *exec.Cmd
	switch {
	case s.opt.Command != "":
		cmd = exec.CommandContext(ctx, s.bin, "-c", fmt.Sprintf(s.opt.Command, shellQuote(text), shellQuote(out)))
	case s.opt.Engine == LocalEnginePico:
		cmd = exec.CommandContext(ctx, s.bin, "-l", s.picoLanguage(), "-w", out, text)
	default:
		args := []string{"-w", out, "-s", fmt.Sprintf("%.0f", s.opt.Speed*175)} // espeak 默认速度 175 wpm
		if s.opt.Language != "" {
			args = append(args, "-v", s.opt.Language)
		}
		cmd = exec.CommandContext(ctx, s.bin, append(args, text)...)
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(out)
		logrus.WithError(err).WithField("output", strings.TrimSpace(string(output))).Error("本地TTS合成失败")
		return nil, &SynthesisError{Provider: VendorLocal, Message: strings.TrimSpace(string(output)), Err: err}
	}
	artifact, err := media.NewArtifact(out, media.KindGreeting)
	if err != nil {
		return nil, &SynthesisError{Provider: VendorLocal, Message: "no output file", Err: err}
	}
	if artifact.Size == 0 {
		return nil, &SynthesisError{Provider: VendorLocal, Message: "empty output file"}
	}
	logrus.WithFields(logrus.Fields{
		"engine": s.opt.Engine,
		"size":   artifact.Size,
	}).Info("本地TTS合成完成")
	return artifact, nil
}

// pico2wave 只接受完整的区域代码
func (s *LocalService) picoLanguage() string {
	switch s.opt.Language {
	case "", "en", "en-US":
		return "en-US"
	case "en-GB", "de-DE", "es-ES", "fr-FR", "it-IT":
		return s.opt.Language
	default:
		return "en-US"
	}
}

func (s *LocalService) Close() error {
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
