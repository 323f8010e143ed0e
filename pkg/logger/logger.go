package logger

import (
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig controls level and file rotation.
type LogConfig struct {
	Level      string `env:"LOG_LEVEL"`
	Filename   string `env:"LOG_FILENAME"`
	MaxSize    int    `env:"LOG_MAX_SIZE"`
	MaxAge     int    `env:"LOG_MAX_AGE"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS"`
}

var lg = zap.NewNop()

// Init builds the process logger. Debug mode logs to the console, everything
// else emits JSON; a Filename additionally routes output through lumberjack.
func Init(cfg LogConfig, mode string) error {
	level := new(zapcore.Level)
	if err := level.UnmarshalText([]byte(strings.ToLower(orDefault(cfg.Level, "info")))); err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.SecondsDurationEncoder

	var encoder zapcore.Encoder
	if mode == "debug" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.Filename != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    orDefaultInt(cfg.MaxSize, 100),
			MaxAge:     orDefaultInt(cfg.MaxAge, 30),
			MaxBackups: orDefaultInt(cfg.MaxBackups, 7),
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	lg = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	zap.ReplaceGlobals(lg)
	return nil
}

// L returns the underlying zap logger.
func L() *zap.Logger { return lg }

func Debug(msg string, fields ...zap.Field) { lg.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { lg.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { lg.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { lg.Error(msg, fields...) }

// Sync flushes buffered entries.
func Sync() { _ = lg.Sync() }

// GinLogger writes one access line per request.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		c.Next()

		lg.Info(path,
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
			zap.Duration("cost", time.Since(start)),
		)
	}
}

// GinRecovery turns handler panics into 500s and logs the stack.
func GinRecovery(stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				var brokenPipe bool
				if ne, ok := err.(*net.OpError); ok {
					if se, ok := ne.Err.(*os.SyscallError); ok {
						msg := strings.ToLower(se.Error())
						brokenPipe = strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
					}
				}

				httpRequest, _ := httputil.DumpRequest(c.Request, false)
				if brokenPipe {
					lg.Error(c.Request.URL.Path, zap.Any("error", err), zap.String("request", string(httpRequest)))
					_ = c.Error(err.(error))
					c.Abort()
					return
				}

				fields := []zap.Field{zap.Any("error", err), zap.String("request", string(httpRequest))}
				if stack {
					fields = append(fields, zap.String("stack", string(debug.Stack())))
				}
				lg.Error("[Recovery from panic]", fields...)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
