// Package videotest 为测试生成合成视频（依赖本机 ffmpeg）。
package videotest

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
)

const (
	Width  = 64
	Height = 48
)

// Make 用 ffmpeg 的 testsrc 生成一个 Width x Height 的 MJPEG/AVI 短片，返回其路径。
// 环境里没有 ffmpeg/ffprobe 或以 -short 运行时跳过当前测试。
func Make(t testing.TB, frames, fps int) string {
	t.Helper()
	if testing.Short() {
		t.Skip("-short：跳过依赖 ffmpeg 的测试")
	}
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("未安装 %s：%v", bin, err)
		}
	}

	out := filepath.Join(t.TempDir(), "synthetic.avi")
	size := strconv.Itoa(Width) + "x" + strconv.Itoa(Height)
	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-f", "lavfi",
		"-i", "testsrc=size="+size+":rate="+strconv.Itoa(fps),
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "mjpeg",
		"-y", out,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("生成测试视频失败：%v\n%s", err, string(b))
	}
	return out
}
