// stripes builds a strip-interleaved composite image from a YAML config.
//
// Usage:
//
//	stripes -config config.yaml -out composite.png
//	stripes -config config.yaml -show
//	stripes -config config.yaml -watch -metricsAddr :9100
//
// Exit codes:
//   - 0: composite written
//   - 1: configuration, image or output error
//   - 2: usage error
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"github.com/Ceslavas/image-processing-tools/config"
	"github.com/Ceslavas/image-processing-tools/imagefile"
	"github.com/Ceslavas/image-processing-tools/infrastructure/logger"
	"github.com/Ceslavas/image-processing-tools/metrics"
	"github.com/Ceslavas/image-processing-tools/stripes"
)

const defaultOutput = "composite.png"

type options struct {
	configPath  string
	out         string
	format      string
	show        bool
	watch       bool
	logLevel    string
	metricsAddr string
	metricsFile string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stripes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.configPath, "config", "config.yaml", "配置文件路径")
	fs.StringVar(&opts.out, "out", "", "合成图输出路径（默认取 output.path，再退回 composite.png）")
	fs.StringVar(&opts.format, "format", "", "输出格式 png|jpeg|gif|bmp|tiff，留空按扩展名推断")
	fs.BoolVar(&opts.show, "show", false, "生成后用系统图片查看器打开")
	fs.BoolVar(&opts.watch, "watch", false, "监听配置与图片变化并重新生成")
	fs.StringVar(&opts.logLevel, "logLevel", "", "日志级别，覆盖配置中的 logging.level")
	fs.StringVar(&opts.metricsAddr, "metricsAddr", "", "watch 模式下 Prometheus metrics 监听地址，留空则关闭")
	fs.StringVar(&opts.metricsFile, "metricsFile", "", "退出前写入 textfile 格式指标")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return 2
	}

	log, err := logger.New(logger.Config{Level: opts.logLevel})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = log.Close() }()

	a := &app{opts: opts, log: log, stdout: stdout}
	// watch 模式下失败只进日志，继续等待下一次变更
	if err := a.renderOnce(); err != nil && !opts.watch {
		fmt.Fprintln(stderr, err)
		a.flushMetrics()
		return 1
	}

	if opts.watch {
		if err := a.watchLoop(); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	a.flushMetrics()
	return 0
}

type app struct {
	opts      options
	log       *logger.Logger
	stdout    io.Writer
	imagePath string
}

// renderOnce runs load -> validate -> process -> save once.
func (a *app) renderOnce() error {
	start := time.Now()
	a.log.LogRun("start", zap.String("config", a.opts.configPath))

	cfg, err := config.LoadWithEnvOverrides(a.opts.configPath)
	if err != nil {
		return a.fail(err)
	}
	a.applyLogging(cfg.Logging)

	params, err := config.Validate(cfg)
	if err != nil {
		if cfg.NumpyBasics != nil && cfg.NumpyBasics.ImagePath != nil {
			a.imagePath = *cfg.NumpyBasics.ImagePath
		}
		return a.fail(err)
	}
	a.imagePath = params.ImagePath

	proc, err := stripes.New(params.Step)
	if err != nil {
		return a.fail(err)
	}
	composite, err := proc.Process(params.ImagePath)
	if err != nil {
		return a.fail(err)
	}
	elapsed := time.Since(start)

	out, format := a.outputTarget(cfg.Output)
	if err := imagefile.Save(out, format, composite); err != nil {
		return a.fail(err)
	}

	b := composite.Bounds()
	metrics.ObserveSuccess(params.Step, b.Dx(), b.Dy(), elapsed)
	a.log.LogRun("done",
		zap.String("image", params.ImagePath),
		zap.Int("step", params.Step),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
		zap.String("out", out),
		zap.Duration("elapsed", elapsed))
	fmt.Fprintf(a.stdout, "composite %dx%d written to %s\n", b.Dx(), b.Dy(), out)

	if a.opts.show {
		if err := showImage(out); err != nil {
			a.log.Warn("failed to open viewer", zap.String("path", out), zap.Error(err))
		}
	}
	return nil
}

func (a *app) fail(err error) error {
	kind := metrics.FailureKind(err)
	metrics.ObserveFailure(err)
	// 单次运行由 run 把错误打印到 stderr，这里只留 debug 记录
	if !a.opts.watch {
		a.log.Debug("error_event", zap.String("kind", kind), zap.Error(err), zap.String("config", a.opts.configPath))
		return err
	}
	a.log.LogError(err, kind, zap.String("config", a.opts.configPath))
	return err
}

// applyLogging rebuilds the logger from the config file's logging section.
func (a *app) applyLogging(cfg logger.Config) {
	if cfg.Level == "" && len(cfg.Outputs) == 0 && cfg.Format == "" && cfg.ErrorFile == "" {
		return
	}
	if a.opts.logLevel != "" {
		cfg.Level = a.opts.logLevel
	}
	l, err := logger.New(cfg)
	if err != nil {
		a.log.Warn("ignoring logging section", zap.Error(err))
		return
	}
	_ = a.log.Close()
	a.log = l
}

func (a *app) outputTarget(cfg config.OutputConfig) (path, format string) {
	path = a.opts.out
	if path == "" {
		path = cfg.Path
	}
	format = a.opts.format
	if format == "" {
		format = cfg.Format
	}
	if path == "" && a.opts.show {
		ext := imagefile.FormatFor(format, "")
		path = filepath.Join(os.TempDir(), fmt.Sprintf("stripes-%d.%s", os.Getpid(), ext))
	}
	if path == "" {
		path = defaultOutput
	}
	return path, format
}

// watchLoop re-renders whenever the config file or its image changes.
func (a *app) watchLoop() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths := []string{a.opts.configPath}
	if a.imagePath != "" {
		paths = append(paths, a.imagePath)
	}
	w, err := config.NewWatcher(config.DefaultWatchConfig(), paths...)
	if err != nil {
		return err
	}
	defer w.Close()
	w.OnError(func(err error) { a.log.Warn("watcher error", zap.Error(err)) })

	if a.opts.metricsAddr != "" {
		srv := metrics.StartMetricsServer(a.opts.metricsAddr, func(err error) {
			a.log.Error("metrics server failed", zap.String("addr", a.opts.metricsAddr), zap.Error(err))
		})
		defer srv.Close()
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", zap.Error(err))
	}
	a.log.LogRun("watching", zap.Strings("paths", paths))

	err = w.Run(ctx, func(path string) {
		a.log.LogRun("reload", zap.String("changed", path))
		if err := a.renderOnce(); err != nil {
			return
		}
		if a.imagePath != "" {
			if err := w.Add(a.imagePath); err != nil {
				a.log.Warn("failed to watch image", zap.String("path", a.imagePath), zap.Error(err))
			}
		}
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) flushMetrics() {
	if a.opts.metricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.opts.metricsFile); err != nil {
		a.log.Warn("failed to write metrics textfile", zap.String("path", a.opts.metricsFile), zap.Error(err))
	}
}
