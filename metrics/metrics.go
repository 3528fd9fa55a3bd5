// Package metrics provides Prometheus metrics for composite runs
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ceslavas/image-processing-tools/config"
	"github.com/Ceslavas/image-processing-tools/imagefile"
	"github.com/Ceslavas/image-processing-tools/stripes"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stripes_runs_total",
		Help: "Composite runs by result",
	}, []string{"result"})

	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stripes_failures_total",
		Help: "Failed runs by failure kind",
	}, []string{"kind"})

	ProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stripes_process_duration_seconds",
		Help:    "Time spent building the composite image",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	CompositePixels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stripes_composite_pixels",
		Help: "Pixel count of the last composite image",
	})

	Step = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stripes_step",
		Help: "Band width used by the last successful run",
	})
)

// StartMetricsServer 启动Prometheus指标服务器
// 监听失败（如端口被占用）时调用 onError，正常关闭不回调。
func StartMetricsServer(addr string, onError func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if onError != nil {
				onError(err)
			}
		}
	}()
	return srv
}

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// ObserveSuccess records a finished run.
func ObserveSuccess(step, width, height int, d time.Duration) {
	RunsTotal.WithLabelValues(ResultSuccess).Inc()
	ProcessDuration.Observe(d.Seconds())
	CompositePixels.Set(float64(width * height))
	Step.Set(float64(step))
}

// ObserveFailure records a failed run under its FailureKind.
func ObserveFailure(err error) {
	RunsTotal.WithLabelValues(ResultFailure).Inc()
	FailuresTotal.WithLabelValues(FailureKind(err)).Inc()
}

// FailureKind maps an error onto a short label.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, config.ErrConfigNotFound):
		return "config_not_found"
	case errors.Is(err, config.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, imagefile.ErrImageNotFound):
		return "image_not_found"
	case errors.Is(err, config.ErrStepOutOfRange):
		return "step_out_of_range"
	case errors.Is(err, imagefile.ErrDecode):
		return "decode"
	case errors.Is(err, stripes.ErrShapeMismatch), errors.Is(err, stripes.ErrInvalidStep):
		return "process"
	default:
		return "other"
	}
}
