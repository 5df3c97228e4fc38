// Package main is the httplog command. Point a web server's piped log at it:
//
//	CustomLog "|/usr/local/bin/httplog /var/log/www/ex%Y%m%d.log" combined
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
	"github.com/urfave/cli/v2"
	"golift.io/httplog"
	"golift.io/httplog/compressor"
	"golift.io/httplog/pathtmpl"
	"golift.io/httplog/retention"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "development" //nolint:gochecknoglobals

var (
	errUsage      = errors.New("a log file name template is required")
	errPrivileges = errors.New("unable to drop privileges")
)

const (
	FlagNameCompress   = "compress"
	FlagNameUser       = "user"
	FlagNameGroup      = "group"
	FlagNameSymlink    = "symlink"
	FlagNameBufferSize = "buffer-size"
	FlagNameUTC        = "utc"
	FlagNameMaxAge     = "max-age"
	FlagNameMaxFiles   = "max-files"
	FlagNameLogFile    = "log-file"
	FlagNameDebug      = "debug"
	FlagCatRetention   = "Retention:"
	FlagCatDiagnostics = "Diagnostics:"
)

// config holds the parsed command line.
type config struct {
	compress bool
	user     string
	group    string
	symlink  string
	bufSize  int
	utc      bool
	maxAge   time.Duration
	maxFiles int
	logFile  string
	debug    bool

	log       *slog.Logger
	logCloser io.Closer
}

func main() {
	if err := Run(context.Background(), os.Args, os.Stdin, os.Stderr); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// Run parses args, then copies input into rotated files until input ends or
// a stop signal arrives. Diagnostics go to logW.
func Run(ctx context.Context, args []string, input io.Reader, logW io.Writer) error {
	cfg := &config{}

	app := &cli.App{
		Name:      "httplog",
		Usage:     "write piped log lines into time-named, rotated files",
		UsageText: "httplog [options] <template>",
		Description: `For example, in your Apache httpd.conf file, insert this line:
	CustomLog "|/path/to/httplog /path/to/logfiles/ex%Y%m%d.log" combined

The template accepts any strftime directive. Host tags are also expanded:
%1 is the short host name, %2 the domain name and %3 the fully-qualified name.
A new file is started whenever the evaluated name changes.
SIGHUP flushes the write buffer. SIGTERM flushes and exits.`,
		Version:                Version,
		UseShortOptionHandling: true,
		HideHelpCommand:        true,
		Reader:                 input,
		Writer:                 logW,
		ErrWriter:              logW,
		Flags:                  cfg.flags(),
		Before:                 cfg.setupLogging(logW),
		After:                  cfg.closeLogging,
		Action: func(cCtx *cli.Context) error {
			if cCtx.NArg() < 1 {
				_ = cli.ShowAppHelp(cCtx)
				return errUsage
			}

			return cfg.run(cCtx.Context, cCtx.Args().First(), input)
		},
	}

	return app.RunContext(ctx, args) //nolint:wrapcheck
}

func (c *config) flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        FlagNameCompress,
			Aliases:     []string{"z"},
			Usage:       "gzip each log file after it is rotated",
			EnvVars:     []string{"HTTPLOG_COMPRESS"},
			Destination: &c.compress,
		},
		&cli.StringFlag{
			Name:        FlagNameUser,
			Aliases:     []string{"u"},
			Usage:       "run as `USER` once started",
			EnvVars:     []string{"HTTPLOG_USER"},
			Destination: &c.user,
		},
		&cli.StringFlag{
			Name:        FlagNameGroup,
			Aliases:     []string{"g"},
			Usage:       "run as `GROUP` once started",
			EnvVars:     []string{"HTTPLOG_GROUP"},
			Destination: &c.group,
		},
		&cli.StringFlag{
			Name:        FlagNameSymlink,
			Aliases:     []string{"s"},
			Usage:       "keep a symlink at `PATH` pointing to the current log file",
			EnvVars:     []string{"HTTPLOG_SYMLINK"},
			Destination: &c.symlink,
		},
		&cli.IntFlag{
			Name:        FlagNameBufferSize,
			Aliases:     []string{"b"},
			Usage:       fmt.Sprintf("write buffer `BYTES`, no less than %d; larger buffers are flushed when full or on SIGHUP", httplog.DefaultBufSize),
			EnvVars:     []string{"HTTPLOG_BUFFER_SIZE"},
			Value:       httplog.DefaultBufSize,
			Destination: &c.bufSize,
		},
		&cli.BoolFlag{
			Name:        FlagNameUTC,
			Usage:       "evaluate the template in UTC instead of local time",
			EnvVars:     []string{"HTTPLOG_UTC"},
			Destination: &c.utc,
		},
		&cli.DurationFlag{
			Name:        FlagNameMaxAge,
			Usage:       "delete rotated files older than `AGE` (0 keeps all)",
			EnvVars:     []string{"HTTPLOG_MAX_AGE"},
			Destination: &c.maxAge,
			Category:    FlagCatRetention,
		},
		&cli.IntFlag{
			Name:        FlagNameMaxFiles,
			Usage:       "keep at most `COUNT` rotated files (0 keeps all)",
			EnvVars:     []string{"HTTPLOG_MAX_FILES"},
			Destination: &c.maxFiles,
			Category:    FlagCatRetention,
		},
		&cli.StringFlag{
			Name:        FlagNameLogFile,
			Usage:       "also write diagnostics to `FILE`",
			EnvVars:     []string{"HTTPLOG_LOG_FILE"},
			Destination: &c.logFile,
			Category:    FlagCatDiagnostics,
		},
		&cli.BoolFlag{
			Name:        FlagNameDebug,
			Usage:       "include debug diagnostics",
			EnvVars:     []string{"HTTPLOG_DEBUG"},
			Destination: &c.debug,
			Category:    FlagCatDiagnostics,
		},
	}
}

// setupLogging builds the diagnostics logger: colored on a terminal,
// optionally copied into a size-rotated file.
func (c *config) setupLogging(logW io.Writer) cli.BeforeFunc {
	return func(_ *cli.Context) error {
		logLevel := slog.LevelInfo
		if c.debug {
			logLevel = slog.LevelDebug
		}

		noColor := true
		if file, ok := logW.(*os.File); ok {
			noColor = !isatty.IsTerminal(file.Fd())
		}

		handlers := []slog.Handler{
			tint.NewHandler(logW, &tint.Options{
				Level:      logLevel,
				TimeFormat: time.StampMilli,
				NoColor:    noColor,
			}),
		}

		if c.logFile != "" {
			logFile := &lumberjack.Logger{
				Filename:   c.logFile,
				MaxSize:    5, // MB
				MaxBackups: 4,
				MaxAge:     30, // days
				Compress:   true,
			}
			c.logCloser = logFile

			handlers = append(handlers, slog.NewTextHandler(logFile, &slog.HandlerOptions{
				Level: logLevel,
			}))
		}

		c.log = slog.New(slogmulti.Fanout(handlers...)).With("app", "httplog")
		slog.SetDefault(c.log)

		return nil
	}
}

func (c *config) closeLogging(_ *cli.Context) error {
	if c.logCloser == nil {
		return nil
	}

	return c.logCloser.Close() //nolint:wrapcheck
}

// run builds the template and the Logger, drops privileges and copies input.
// No log file is created before every option is validated.
func (c *config) run(ctx context.Context, raw string, input io.Reader) error {
	if c.bufSize < httplog.DefaultBufSize {
		return fmt.Errorf("%w: %w: buffer size can be no less than %d",
			httplog.ErrConfig, httplog.ErrBufferTooSmall, httplog.DefaultBufSize)
	}

	host := pathtmpl.UnknownHost()
	if pathtmpl.HasTags(raw) {
		host = pathtmpl.ResolveHost(ctx, net.DefaultResolver)
		c.log.Debug("Resolved host name", "short", host.Short, "domain", host.Domain, "fqdn", host.FQDN)
	}

	tmpl, err := pathtmpl.New(raw, host, pathtmpl.WithUTC(c.utc))
	if err != nil {
		return fmt.Errorf("%w: %w", httplog.ErrConfig, err)
	}

	policy := &retention.Policy{
		Glob:     tmpl.Glob(),
		Match:    tmpl.Match,
		MaxAge:   c.maxAge,
		MaxFiles: c.maxFiles,
		Log:      c.log,
	}

	signals, stop := httplog.Notify()
	defer stop()

	logger, err := httplog.New(&httplog.Config{
		Rotatorr:   tmpl,
		BufSize:    c.bufSize,
		Symlink:    c.symlink,
		Compress:   c.compress,
		Signals:    signals,
		Compressor: &compressor.Config{},
		Log:        c.log,
		PostRotate: policy.PostRotate,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err := dropPrivileges(c.user, c.group); err != nil {
		return err
	}

	c.log.Info("httplog configured -- resuming normal operations",
		"version", Version, "template", raw, "compress", c.compress, "buffer", c.bufSize,
		"retention", policy.Enabled())

	err = logger.Run(ctx, input)
	policy.Wait()

	return err //nolint:wrapcheck
}
