package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// Lg is usable before Init; it discards everything until then.
var (
	Lg = zap.NewNop()
)

// Init 初始化logger
func Init(cfg *LogConfig, mode string) (err error) {
	if dir := filepath.Dir(cfg.Filename); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return
		}
	}
	fileWriter := getLogWriter(cfg.Filename, cfg.MaxSize, cfg.MaxBackups, cfg.MaxAge, cfg.Daily)
	writeSyncer := zapcore.AddSync(fileWriter)
	encoder := getEncoder()
	var l = new(zapcore.Level)
	err = l.UnmarshalText([]byte(cfg.Level))
	if err != nil {
		return
	}
	var core zapcore.Core
	if isDevelopment(mode) {
		consoleEncoder := zapcore.NewConsoleEncoder(getConsoleEncoderConfig())

		highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.ErrorLevel
		})
		lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl < zapcore.ErrorLevel && lvl >= *l
		})

		core = zapcore.NewTee(
			zapcore.NewCore(encoder, writeSyncer, l),
			zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), lowPriority),
			zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), highPriority),
		)
	} else {
		core = zapcore.NewCore(encoder, writeSyncer, l)
	}

	Lg = zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(Lg)

	// vendor adapters log through logrus; keep them in the same file
	initLogrus(fileWriter, cfg.Level, mode)

	Info("init logger success")
	return
}

// Named returns a child logger for one component.
func Named(name string) *zap.Logger {
	return Lg.Named(name)
}

func isDevelopment(mode string) bool {
	return mode == "dev" || mode == "development"
}

func initLogrus(w io.Writer, level, mode string) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
		},
	})
	if isDevelopment(mode) {
		logrus.SetOutput(io.MultiWriter(w, os.Stdout))
	} else {
		logrus.SetOutput(w)
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(lvl)
	}
}

func getConsoleEncoderConfig() zapcore.EncoderConfig {
	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.TimeKey = "time"
	consoleEncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("\x1b[90m" + t.Format("2006-01-02 15:04:05.000") + "\x1b[0m")
	}
	consoleEncoderConfig.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		var levelColor = map[zapcore.Level]string{
			zapcore.DebugLevel:  "\x1b[35m",
			zapcore.InfoLevel:   "\x1b[36m",
			zapcore.WarnLevel:   "\x1b[33m",
			zapcore.ErrorLevel:  "\x1b[31m",
			zapcore.DPanicLevel: "\x1b[31m",
			zapcore.PanicLevel:  "\x1b[31m",
			zapcore.FatalLevel:  "\x1b[31m",
		}
		color, ok := levelColor[l]
		if !ok {
			color = "\x1b[0m"
		}
		enc.AppendString(color + "[" + l.CapitalString() + "]\x1b[0m")
	}
	consoleEncoderConfig.EncodeCaller = func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("\x1b[90m" + caller.TrimmedPath() + "\x1b[0m")
	}
	return consoleEncoderConfig
}

func getEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func getLogWriter(filename string, maxSize, maxBackup, maxAge int, daily bool) *lumberjack.Logger {
	if daily {
		filename = GetDailyLogFilename(filename)
	}
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: maxBackup,
		MaxAge:     maxAge,
		LocalTime:  true,
	}
}

// Info 通用 info 日志方法
func Info(msg string, fields ...zap.Field) {
	Lg.Info(msg, fields...)
}

// Warn 通用 warn 日志方法
func Warn(msg string, fields ...zap.Field) {
	Lg.Warn(msg, fields...)
}

// Error 通用 error 日志方法
func Error(msg string, fields ...zap.Field) {
	Lg.Error(msg, fields...)
}

// Debug 通用 debug 日志方法
func Debug(msg string, fields ...zap.Field) {
	Lg.Debug(msg, fields...)
}

// Fatal 通用 fatal 日志方法
func Fatal(msg string, fields ...zap.Field) {
	Lg.Fatal(msg, fields...)
}

// Sync 刷新缓冲区
func Sync() {
	_ = Lg.Sync()
}

// GetDailyLogFilename 获取按日期分割的日志文件名
func GetDailyLogFilename(baseFilename string) string {
	ext := filepath.Ext(baseFilename)
	base := baseFilename[:len(baseFilename)-len(ext)]
	dateStr := time.Now().Format("2006-01-02")
	return base + "-" + dateStr + ext
}
