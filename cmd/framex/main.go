package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/framex/internal/app/run"
	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/extract"
	"github.com/John-Robertt/framex/internal/infra/logx"
	"github.com/John-Robertt/framex/internal/infra/metrics"
	"github.com/John-Robertt/framex/internal/scan"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newCLI(os.Stdout, os.Stderr).execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// cli 持有一次命令执行所需的全部外部输入，测试可直接构造。
type cli struct {
	stdout io.Writer
	stderr io.Writer

	stdoutTTY bool
	stderrTTY bool

	getwd   func() (string, error)
	environ func() []string
	open    extract.Opener // nil 表示使用默认解码器

	exitCode int
}

func newCLI(stdout, stderr *os.File) *cli {
	return &cli{
		stdout:    stdout,
		stderr:    stderr,
		stdoutTTY: isTTY(stdout),
		stderrTTY: isTTY(stderr),
		getwd:     os.Getwd,
		environ:   os.Environ,
	}
}

func (c *cli) execute(ctx context.Context, args []string) int {
	root := c.rootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		fmt.Fprint(c.stderr, root.UsageString())
		return exitUsage
	}
	return c.exitCode
}

func (c *cli) rootCmd() *cobra.Command {
	var (
		configPath  string
		logLevel    string
		metricsFile string
	)

	cliArgs := func(cmd *cobra.Command) config.CLIArgs {
		return config.CLIArgs{
			ConfigPath:  configPath,
			LogLevel:    logLevel,
			LogLevelSet: cmd.Flags().Changed("log-level"),

			MetricsFile:    metricsFile,
			MetricsFileSet: cmd.Flags().Changed("metrics-file"),
		}
	}

	root := &cobra.Command{
		Use:   "framex",
		Short: "按类别从视频中抽帧，生成图片数据集",
		Long: `framex 按配置表顺序处理每个类别：跳过开头 warm-up 秒，之后每 stride 帧取一帧，
写入 <raw_images_dir>/<label>/<label>_<N>.jpg（N 从 0 开始、连续）。

stdout 不是终端时，stdout 只输出一个 RunReport JSON；摘要与日志走 stderr。`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.exitCode = c.runExtract(cmd.Context(), cliArgs(cmd))
			return nil
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（默认尝试 ./"+config.FileName+"）")
	root.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "日志级别：debug|info|warn|error")
	root.Flags().StringVar(&metricsFile, "metrics-file", "", "运行结束后把指标写成 Prometheus textfile（默认不写）")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "只校验配置并列出类别表，不写任何文件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.exitCode = c.runValidate(cliArgs(cmd))
			return nil
		},
	}
	root.AddCommand(validateCmd)

	return root
}

func (c *cli) loadConfig(args config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := c.getwd()
	if err != nil {
		return config.EffectiveConfig{}, &config.Error{Code: config.ErrCodeInvalid, Err: fmt.Errorf("读取当前目录失败：%w", err)}
	}
	cwdAbs, _ := filepath.Abs(cwd)
	return config.LoadEffectiveEnv(cwdAbs, args, c.environ())
}

func (c *cli) runExtract(ctx context.Context, args config.CLIArgs) int {
	eff, err := c.loadConfig(args)
	if err != nil {
		c.emitReport(reportForConfigError("", err))
		return exitFail
	}

	progressW, interactive := c.pickProgressWriter()

	// 交互终端上进度由 progress UI 展示；info 日志只会刷屏。
	level := eff.LogLevel
	if interactive && level == "info" {
		level = "warn"
	}
	log, err := logx.NewWithWriter(level, c.stderr)
	if err != nil {
		c.emitReport(reportForConfigError(eff.VideosDir, &config.Error{Code: config.ErrCodeInvalid, Err: err}))
		return exitFail
	}
	defer func() { _ = log.Sync() }()

	log.Debug("配置已加载",
		zap.String("config_file", eff.ConfigFile),
		zap.String("videos_dir", eff.VideosDir),
		zap.String("raw_images_dir", eff.RawImagesDir),
		zap.Int("classes", len(eff.Classes)),
	)

	var ui run.Observer
	if interactive {
		p := newProgressUI(progressW)
		defer p.Close()
		ui = p
	}
	var rec *metrics.Recorder
	if eff.MetricsFile != "" {
		rec = metrics.New()
	}
	obs := run.Observers(ui, recorderObserver(rec))

	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{Open: c.open, Log: log}, obs)

	if rec != nil {
		if err := rec.WriteTextfile(eff.MetricsFile); err != nil {
			log.Error("写入指标文件失败", zap.String("path", eff.MetricsFile), zap.Error(err))
			fmt.Fprintf(c.stderr, "写入指标文件失败：%v\n", err)
			c.emitReport(rr)
			return exitFail
		}
	}

	c.emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.OK() {
		return exitOK
	}
	return exitFail
}

func (c *cli) runValidate(args config.CLIArgs) int {
	eff, err := c.loadConfig(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "配置无效：%v\n", err)
		return exitFail
	}

	w := c.stdout
	cfgFile := eff.ConfigFile
	if cfgFile == "" {
		cfgFile = "(未使用配置文件，内置默认)"
	}
	fmt.Fprintf(w, "config: %s\n", cfgFile)
	fmt.Fprintf(w, "videos_dir: %s\n", eff.VideosDir)
	fmt.Fprintf(w, "raw_images_dir: %s\n", eff.RawImagesDir)
	fmt.Fprintf(w, "stride: %d\n", eff.Stride)
	fmt.Fprintf(w, "warmup_seconds: %g\n", eff.WarmupSeconds)
	fmt.Fprintln(w, "classes:")
	for _, cs := range eff.Classes {
		fmt.Fprintf(w, "  %s: %s -> %s\n", cs.Label, cs.Video, cs.OutDir)
	}

	files, err := scan.ScanVideos(eff.VideosDir, []string{eff.RawImagesDir})
	if err != nil {
		fmt.Fprintf(c.stderr, "扫描 videos_dir 失败：%v\n", err)
		return exitOK
	}
	left := scan.Unreferenced(files, eff.Classes)
	if len(left) == 0 {
		return exitOK
	}
	fmt.Fprintln(w, "unreferenced videos:")
	for _, f := range left {
		fmt.Fprintf(w, "  %s\n", f.RelPath)
	}
	return exitOK
}

func (c *cli) emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：processed=%d skipped=%d failed=%d frames=%d corrupt=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Frames, rr.Summary.Corrupt,
	)

	if c.stdoutTTY {
		fmt.Fprint(c.stdout, summary)
		for _, cr := range rr.Classes {
			if cr.Status == domain.StatusProcessed {
				continue
			}
			key := cr.Label
			if key == "" {
				key = "<config>"
			}
			fmt.Fprintf(c.stderr, "%s %s: %s\n", key, cr.ErrorCode, cr.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(c.stdout)
	_ = enc.Encode(rr)
	fmt.Fprint(c.stderr, summary)
}

// recorderObserver 避免把 nil *Recorder 装进非 nil 的接口值。
func recorderObserver(rec *metrics.Recorder) run.Observer {
	if rec == nil {
		return nil
	}
	return rec
}

// reportForConfigError 构造配置阶段失败的报告；videosDir 未解析出来时留空。
func reportForConfigError(videosDir string, err error) domain.RunReport {
	now := time.Now().UTC()

	label := ""
	var ce *config.Error
	if errors.As(err, &ce) {
		label = ce.Label
	}
	code := config.Code(err)
	if code == "" {
		code = config.ErrCodeInvalid
	}

	rr := domain.RunReport{
		VideosDir:  videosDir,
		StartedAt:  now,
		FinishedAt: now,
		Classes: []domain.ClassResult{{
			Label:     label,
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (c *cli) pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if c.stderrTTY {
		return c.stderr, true
	}
	// 仅重定向 stderr 时 stdout 仍是 TTY：退化输出到 stdout。
	if c.stdoutTTY {
		return c.stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "out: %s\n", eff.RawImagesDir)
}
