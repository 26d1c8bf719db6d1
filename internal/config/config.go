package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/infra/logx"
	"github.com/John-Robertt/framex/internal/scan"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件/.env/环境变量无法解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingVideo 表示某个类别在 videos 映射里没有对应视频。
	ErrCodeMissingVideo = domain.ErrCodeConfigMissingVideo
	// ErrCodeVideoNotFound 表示某个类别引用的视频文件不存在。
	ErrCodeVideoNotFound = domain.ErrCodeConfigVideoNotFound
)

const (
	FileName   = "framex.json"
	DotEnvName = ".env"
	EnvPrefix  = "FRAMEX_"

	DefaultVideosDir     = "data/videos"
	DefaultRawImagesDir  = "data/raw_images"
	DefaultStride        = 50
	DefaultWarmupSeconds = 60.0
	DefaultLogLevel      = logx.DefaultLevel
)

// CLIArgs 只包含 CLI 暴露的两项入口，并保留“是否显式指定”的信息。
type CLIArgs struct {
	ConfigPath string

	LogLevel    string
	LogLevelSet bool

	MetricsFile    string
	MetricsFileSet bool
}

// FileConfig 对应 framex.json 的解析结构。未出现的字段沿用内置默认值。
type FileConfig struct {
	VideosDir     string            `json:"videos_dir"`
	RawImagesDir  string            `json:"raw_images_dir"`
	Classes       []string          `json:"classes"`
	Videos        map[string]string `json:"videos"`
	Stride        *int              `json:"stride"`
	WarmupSeconds *float64          `json:"warmup_seconds"`
	LogLevel      string            `json:"log_level"`
	MetricsFile   string            `json:"metrics_file"`
}

// envConfig 是 FRAMEX_* 环境变量（含 .env）的覆盖层。
// 解析前先用更低优先级的值填充：未设置的变量不会改动字段。
type envConfig struct {
	VideosDir     string  `env:"VIDEOS_DIR"`
	RawImagesDir  string  `env:"RAW_IMAGES_DIR"`
	Stride        int     `env:"STRIDE"`
	WarmupSeconds float64 `env:"WARMUP_SECONDS"`
	LogLevel      string  `env:"LOG_LEVEL"`
	MetricsFile   string  `env:"METRICS_FILE"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（driver 直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigFile 是实际读取的配置文件；未读取则为空。
	ConfigFile string

	VideosDir    string
	RawImagesDir string

	// Classes 保持配置顺序；Video/OutDir 均为绝对路径。
	Classes []domain.ClassSpec

	Stride        int
	WarmupSeconds float64

	LogLevel string

	// MetricsFile 非空时，运行结束后把指标写成 Prometheus textfile。
	MetricsFile string
}

// Policy 返回某个类别的抽帧策略（文件名前缀即类别名）。
func (c EffectiveConfig) Policy(label domain.ClassLabel) domain.ExtractionPolicy {
	return domain.ExtractionPolicy{
		Stride:        c.Stride,
		WarmupSeconds: c.WarmupSeconds,
		NamePrefix:    string(label),
	}
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code  string
	Path  string
	Label string
	Err   error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingVideo:
		return fmt.Sprintf("%s：类别 %q 没有配置视频（videos.%s）", e.Code, e.Label, e.Label)
	case ErrCodeVideoNotFound:
		if e.Err != nil {
			return fmt.Sprintf("%s：类别 %q 的视频 %q 不存在：%v", e.Code, e.Label, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：类别 %q 的视频 %q 不存在", e.Code, e.Label, e.Path)
	case ErrCodeInvalid:
		if e.Path != "" && e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Defaults 返回内置默认配置（Mario vs Wario）。每次调用返回新副本。
func Defaults() FileConfig {
	stride := DefaultStride
	warmup := DefaultWarmupSeconds
	return FileConfig{
		VideosDir:    DefaultVideosDir,
		RawImagesDir: DefaultRawImagesDir,
		Classes:      []string{"mario", "wario"},
		Videos: map[string]string{
			"mario": "mario.mp4",
			"wario": "wario.mp4",
		},
		Stride:        &stride,
		WarmupSeconds: &warmup,
		LogLevel:      DefaultLogLevel,
	}
}

// LoadEffective 读取配置并与环境变量、CLI 参数合并为最终配置，使用进程环境变量。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return LoadEffectiveEnv(cwd, cli, os.Environ())
}

// LoadEffectiveEnv 与 LoadEffective 相同，但环境变量由调用方给出（"KEY=VALUE" 形式）。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/framex.json（可选）
// 3) <cwd>/.env（可选）只补充进程环境中没有的变量
//
// 覆盖优先级（固定）：CLI > 进程环境变量 > .env > 配置文件 > 内置默认。
// 相对路径：读取了配置文件则相对其所在目录，否则相对 cwd。
func LoadEffectiveEnv(cwd string, cli CLIArgs, environ []string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	fc := Defaults()
	base := cwdAbs
	cfgPath := ""

	if strings.TrimSpace(cli.ConfigPath) != "" {
		p := absCleanFrom(cwdAbs, cli.ConfigPath)
		fileFC, exists, err := readFileConfig(p)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: p, Err: os.ErrNotExist}
		}
		overlayFile(&fc, fileFC)
		cfgPath = p
	} else {
		p := filepath.Join(cwdAbs, FileName)
		fileFC, exists, err := readFileConfig(p)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if exists {
			overlayFile(&fc, fileFC)
			cfgPath = p
		}
	}
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}

	vars, err := environment(filepath.Join(cwdAbs, DotEnvName), environ)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: filepath.Join(cwdAbs, DotEnvName), Err: err}
	}

	ec := envConfig{
		VideosDir:     fc.VideosDir,
		RawImagesDir:  fc.RawImagesDir,
		Stride:        *fc.Stride,
		WarmupSeconds: *fc.WarmupSeconds,
		LogLevel:      fc.LogLevel,
		MetricsFile:   fc.MetricsFile,
	}
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix, Environment: vars}); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("环境变量无效：%w", err)}
	}

	if cli.LogLevelSet {
		ec.LogLevel = cli.LogLevel
	}

	eff, err := build(base, cfgPath, fc, ec)
	if err != nil {
		return EffectiveConfig{}, err
	}
	// CLI 给出的路径总是相对 cwd。
	if cli.MetricsFileSet {
		eff.MetricsFile = absCleanFrom(cwdAbs, cli.MetricsFile)
	}
	return eff, nil
}

func build(base, cfgPath string, fc FileConfig, ec envConfig) (EffectiveConfig, error) {
	invalid := func(err error) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	if ec.Stride < 1 {
		return EffectiveConfig{}, invalid(fmt.Errorf("stride 必须 >= 1，实际是 %d", ec.Stride))
	}
	if ec.WarmupSeconds < 0 || math.IsNaN(ec.WarmupSeconds) || math.IsInf(ec.WarmupSeconds, 0) {
		return EffectiveConfig{}, invalid(fmt.Errorf("warmup_seconds 必须是 >= 0 的有限数，实际是 %v", ec.WarmupSeconds))
	}
	logLevel := strings.ToLower(strings.TrimSpace(ec.LogLevel))
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	if _, err := logx.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	if strings.TrimSpace(ec.VideosDir) == "" {
		return EffectiveConfig{}, invalid(errors.New("videos_dir 不能为空"))
	}
	if strings.TrimSpace(ec.RawImagesDir) == "" {
		return EffectiveConfig{}, invalid(errors.New("raw_images_dir 不能为空"))
	}
	if len(fc.Classes) == 0 {
		return EffectiveConfig{}, invalid(errors.New("classes 不能为空"))
	}

	videosDir := absCleanFrom(base, ec.VideosDir)
	rawDir := absCleanFrom(base, ec.RawImagesDir)

	seen := make(map[string]struct{}, len(fc.Classes))
	classes := make([]domain.ClassSpec, 0, len(fc.Classes))
	for _, raw := range fc.Classes {
		label := strings.TrimSpace(raw)
		if !domain.ValidLabel(label) {
			return EffectiveConfig{}, invalid(fmt.Errorf("类别名 %q 不合法（只允许字母/数字/_/./-，且以字母或数字开头）", raw))
		}
		if _, dup := seen[label]; dup {
			return EffectiveConfig{}, invalid(fmt.Errorf("类别名 %q 重复", label))
		}
		seen[label] = struct{}{}

		name := strings.TrimSpace(fc.Videos[label])
		if name == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingVideo, Path: cfgPath, Label: label}
		}

		classes = append(classes, domain.ClassSpec{
			Label:  domain.ClassLabel(label),
			Video:  absCleanFrom(videosDir, name),
			OutDir: filepath.Join(rawDir, label),
		})
	}

	// 所有视频都必须在开始抽帧前存在。
	for _, c := range classes {
		fi, err := os.Stat(c.Video)
		if err == nil && !fi.IsDir() {
			continue
		}
		if err == nil {
			err = errors.New("路径是目录")
		}
		if hint := availableVideos(videosDir, rawDir); hint != "" {
			err = fmt.Errorf("%w；%s", err, hint)
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeVideoNotFound, Path: c.Video, Label: string(c.Label), Err: err}
	}

	return EffectiveConfig{
		ConfigFile:    cfgPath,
		VideosDir:     videosDir,
		RawImagesDir:  rawDir,
		Classes:       classes,
		Stride:        ec.Stride,
		WarmupSeconds: ec.WarmupSeconds,
		LogLevel:      logLevel,
		MetricsFile:   absCleanFrom(base, ec.MetricsFile),
	}, nil
}

// availableVideos 列出 videos_dir 下实际存在的视频，帮助用户修正 videos 映射。
func availableVideos(videosDir, rawDir string) string {
	files, err := scan.ScanVideos(videosDir, []string{rawDir})
	if err != nil || len(files) == 0 {
		return ""
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.RelPath)
	}
	b, _ := json.Marshal(names)
	return "videos_dir 下可用视频：" + string(b)
}

func overlayFile(dst *FileConfig, src FileConfig) {
	if strings.TrimSpace(src.VideosDir) != "" {
		dst.VideosDir = src.VideosDir
	}
	if strings.TrimSpace(src.RawImagesDir) != "" {
		dst.RawImagesDir = src.RawImagesDir
	}
	if src.Classes != nil {
		dst.Classes = append([]string(nil), src.Classes...)
	}
	if src.Videos != nil {
		dst.Videos = make(map[string]string, len(src.Videos))
		for k, v := range src.Videos {
			dst.Videos[k] = v
		}
	}
	if src.Stride != nil {
		v := *src.Stride
		dst.Stride = &v
	}
	if src.WarmupSeconds != nil {
		v := *src.WarmupSeconds
		dst.WarmupSeconds = &v
	}
	if strings.TrimSpace(src.LogLevel) != "" {
		dst.LogLevel = src.LogLevel
	}
	if strings.TrimSpace(src.MetricsFile) != "" {
		dst.MetricsFile = src.MetricsFile
	}
}

// environment 合并 .env 与进程环境变量；同名时进程环境变量优先。
func environment(dotenvPath string, environ []string) (map[string]string, error) {
	vars := make(map[string]string, len(environ))

	dot, err := godotenv.Read(dotenvPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for k, v := range dot {
		vars[k] = v
	}

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return vars, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
// 未知字段视为错误：拼错的键（例如 "stirde"）不应被静默忽略。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
