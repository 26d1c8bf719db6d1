package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/framex/internal/domain"
)

// marioWario 在 cwd 下按默认布局放好两个视频。
func marioWario(t *testing.T, cwd string) {
	t.Helper()
	writeFile(t, filepath.Join(cwd, "data", "videos", "mario.mp4"), []byte("x"))
	writeFile(t, filepath.Join(cwd, "data", "videos", "wario.mp4"), []byte("x"))
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "", eff.ConfigFile)
	assert.Equal(t, filepath.Join(cwd, "data", "videos"), eff.VideosDir)
	assert.Equal(t, filepath.Join(cwd, "data", "raw_images"), eff.RawImagesDir)
	assert.Equal(t, 50, eff.Stride)
	assert.Equal(t, 60.0, eff.WarmupSeconds)
	assert.Equal(t, "info", eff.LogLevel)

	require.Len(t, eff.Classes, 2)
	assert.Equal(t, domain.ClassSpec{
		Label:  "mario",
		Video:  filepath.Join(cwd, "data", "videos", "mario.mp4"),
		OutDir: filepath.Join(cwd, "data", "raw_images", "mario"),
	}, eff.Classes[0])
	assert.Equal(t, domain.ClassLabel("wario"), eff.Classes[1].Label)

	p := eff.Policy("wario")
	assert.Equal(t, domain.ExtractionPolicy{Stride: 50, WarmupSeconds: 60, NamePrefix: "wario"}, p)
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffectiveEnv(cwd, CLIArgs{ConfigPath: "nope.json"}, nil)
	assert.Equal(t, ErrCodeNotFound, Code(err), "err=%v", err)
}

func TestLoadEffective_ConfigFileRelativeToItsDir(t *testing.T) {
	cwd := t.TempDir()
	proj := filepath.Join(cwd, "proj")
	writeFile(t, filepath.Join(proj, "clips", "a.mkv"), []byte("x"))
	writeFile(t, filepath.Join(proj, "cfg.json"), []byte(`{
		"videos_dir": "clips",
		"raw_images_dir": "frames",
		"classes": ["luigi"],
		"videos": {"luigi": "a.mkv"},
		"stride": 10,
		"warmup_seconds": 0
	}`))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{ConfigPath: filepath.Join("proj", "cfg.json")}, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(proj, "cfg.json"), eff.ConfigFile)
	assert.Equal(t, filepath.Join(proj, "clips"), eff.VideosDir)
	require.Len(t, eff.Classes, 1)
	assert.Equal(t, filepath.Join(proj, "clips", "a.mkv"), eff.Classes[0].Video)
	assert.Equal(t, filepath.Join(proj, "frames", "luigi"), eff.Classes[0].OutDir)
	assert.Equal(t, 10, eff.Stride)
	assert.Equal(t, 0.0, eff.WarmupSeconds)
}

func TestLoadEffective_DiscoversFileInCwd(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"stride": 25}`))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, FileName), eff.ConfigFile)
	assert.Equal(t, 25, eff.Stride)
	// 未出现的字段沿用默认值。
	assert.Equal(t, 60.0, eff.WarmupSeconds)
	assert.Len(t, eff.Classes, 2)
}

func TestLoadEffective_InvalidJSON(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"stride": `))

	_, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	assert.Equal(t, ErrCodeInvalid, Code(err), "err=%v", err)
}

func TestLoadEffective_UnknownField(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"stirde": 10}`))

	_, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	assert.Equal(t, ErrCodeInvalid, Code(err), "err=%v", err)
}

func TestLoadEffective_Precedence(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"stride": 10, "warmup_seconds": 1, "log_level": "error"}`))
	writeFile(t, filepath.Join(cwd, DotEnvName), []byte("FRAMEX_STRIDE=20\nFRAMEX_WARMUP_SECONDS=2\nFRAMEX_LOG_LEVEL=warn\n"))

	// .env 覆盖配置文件。
	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, eff.Stride)
	assert.Equal(t, 2.0, eff.WarmupSeconds)
	assert.Equal(t, "warn", eff.LogLevel)

	// 进程环境变量覆盖 .env；未设置的变量不影响下层。
	eff, err = LoadEffectiveEnv(cwd, CLIArgs{}, []string{"FRAMEX_STRIDE=30", "PATH=/bin"})
	require.NoError(t, err)
	assert.Equal(t, 30, eff.Stride)
	assert.Equal(t, 2.0, eff.WarmupSeconds)

	// CLI 覆盖一切。
	eff, err = LoadEffectiveEnv(cwd, CLIArgs{LogLevel: "debug", LogLevelSet: true}, []string{"FRAMEX_LOG_LEVEL=info"})
	require.NoError(t, err)
	assert.Equal(t, "debug", eff.LogLevel)
}

func TestLoadEffective_EnvDirsRelativeToCwd(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "v", "mario.mp4"), []byte("x"))
	writeFile(t, filepath.Join(cwd, "v", "wario.mp4"), []byte("x"))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, []string{"FRAMEX_VIDEOS_DIR=v", "FRAMEX_RAW_IMAGES_DIR=out"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "v"), eff.VideosDir)
	assert.Equal(t, filepath.Join(cwd, "out", "wario"), eff.Classes[1].OutDir)
}

func TestLoadEffective_EnvNotANumber(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)

	_, err := LoadEffectiveEnv(cwd, CLIArgs{}, []string{"FRAMEX_STRIDE=fifty"})
	assert.Equal(t, ErrCodeInvalid, Code(err), "err=%v", err)
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		json string
		env  []string
		cli  CLIArgs
	}{
		{name: "stride zero", json: `{"stride": 0}`},
		{name: "negative warmup", env: []string{"FRAMEX_WARMUP_SECONDS=-1"}},
		{name: "bad log level", cli: CLIArgs{LogLevel: "loud", LogLevelSet: true}},
		{name: "empty classes", json: `{"classes": []}`},
		{name: "bad label", json: `{"classes": ["../x"], "videos": {"../x": "mario.mp4"}}`},
		{name: "duplicate label", json: `{"classes": ["mario", "mario"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			marioWario(t, cwd)
			if tc.json != "" {
				writeFile(t, filepath.Join(cwd, FileName), []byte(tc.json))
			}
			_, err := LoadEffectiveEnv(cwd, tc.cli, tc.env)
			assert.Equal(t, ErrCodeInvalid, Code(err), "err=%v", err)
		})
	}
}

func TestLoadEffective_MissingVideoEntry(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"classes": ["mario", "luigi"]}`))

	_, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeMissingVideo, Code(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "luigi", ce.Label)
}

func TestLoadEffective_VideoNotFoundListsCandidates(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "data", "videos", "mario.mp4"), []byte("x"))
	writeFile(t, filepath.Join(cwd, "data", "videos", "Wario.MP4"), []byte("x"))

	_, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeVideoNotFound, Code(err))
	assert.Contains(t, err.Error(), "wario")
	assert.Contains(t, err.Error(), "Wario.MP4")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEffective_VideoIsDirectory(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "data", "videos", "mario.mp4"), []byte("x"))
	require.NoError(t, os.MkdirAll(filepath.Join(cwd, "data", "videos", "wario.mp4"), 0o755))

	_, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	assert.Equal(t, ErrCodeVideoNotFound, Code(err), "err=%v", err)
}

func TestLoadEffective_ProcessEnv(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)
	t.Setenv("FRAMEX_STRIDE", "7")

	eff, err := LoadEffective(cwd, CLIArgs{})
	require.NoError(t, err)
	assert.Equal(t, 7, eff.Stride)
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func TestLoadEffective_MetricsFile(t *testing.T) {
	cwd := t.TempDir()
	marioWario(t, cwd)

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", eff.MetricsFile, "默认不导出指标")

	proj := filepath.Join(cwd, "proj")
	writeFile(t, filepath.Join(proj, "data", "videos", "mario.mp4"), []byte("x"))
	writeFile(t, filepath.Join(proj, "data", "videos", "wario.mp4"), []byte("x"))
	writeFile(t, filepath.Join(proj, "cfg.json"), []byte(`{"metrics_file": "m/framex.prom"}`))

	eff, err = LoadEffectiveEnv(cwd, CLIArgs{ConfigPath: "proj/cfg.json"}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(proj, "m", "framex.prom"), eff.MetricsFile)

	eff, err = LoadEffectiveEnv(cwd, CLIArgs{ConfigPath: "proj/cfg.json", MetricsFile: "x.prom", MetricsFileSet: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "x.prom"), eff.MetricsFile)
}
