// Package metrics 把一次运行的抽帧统计导出为 Prometheus textfile，
// 供 node_exporter 的 textfile collector 采集（批处理任务没有常驻 /metrics 端点）。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
)

// Recorder 实现 run.Observer。每次运行使用独立的 Registry，不碰全局默认注册表。
type Recorder struct {
	reg *prometheus.Registry

	framesWritten *prometheus.CounterVec
	framesCorrupt *prometheus.CounterVec
	framesDecoded *prometheus.CounterVec
	classSeconds  *prometheus.GaugeVec
	classes       *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		framesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_frames_written_total",
			Help: "Frames written as images, by class.",
		}, []string{"class"}),
		framesCorrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_frames_corrupt_total",
			Help: "Selected frames skipped because they could not be decoded, by class.",
		}, []string{"class"}),
		framesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_frames_decoded_total",
			Help: "Frames decoded (including discarded ones), by class.",
		}, []string{"class"}),
		classSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "framex_class_duration_seconds",
			Help: "Wall time spent on the last run of a class.",
		}, []string{"class"}),
		classes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_classes_total",
			Help: "Classes finished, by status.",
		}, []string{"status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "framex_last_run_timestamp_seconds",
			Help: "Unix time the metrics file was written.",
		}),
	}
	r.reg.MustRegister(r.framesWritten, r.framesCorrupt, r.framesDecoded, r.classSeconds, r.classes, r.lastRun)
	return r
}

// Registry 暴露底层注册表（测试与嵌入方使用）。
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) OnStart(eff config.EffectiveConfig) {
	// 预先创建每个类别的序列：没写出任何帧的类别也应导出 0。
	for _, c := range eff.Classes {
		l := string(c.Label)
		r.framesWritten.WithLabelValues(l)
		r.framesCorrupt.WithLabelValues(l)
		r.framesDecoded.WithLabelValues(l)
	}
	for _, s := range []string{domain.StatusProcessed, domain.StatusSkipped, domain.StatusFailed} {
		r.classes.WithLabelValues(s)
	}
}

func (r *Recorder) OnClassStart(idx, total int, spec domain.ClassSpec) {}

func (r *Recorder) OnFrameWritten(label domain.ClassLabel, written int) {
	r.framesWritten.WithLabelValues(string(label)).Inc()
}

func (r *Recorder) OnClassDone(idx, total int, res domain.ClassResult, dur time.Duration) {
	r.framesCorrupt.WithLabelValues(res.Label).Add(float64(res.Corrupt))
	r.framesDecoded.WithLabelValues(res.Label).Add(float64(res.Decoded))
	r.classSeconds.WithLabelValues(res.Label).Set(dur.Seconds())
	r.classes.WithLabelValues(res.Status).Inc()
}

// WriteTextfile 以原子方式（临时文件 + rename）写出 textfile 格式的指标。
func (r *Recorder) WriteTextfile(path string) error {
	r.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, r.reg)
}
