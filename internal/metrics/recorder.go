package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// ImageResult enumerates image pipeline outcomes.
type ImageResult string

const (
	ImageEncoded ImageResult = "encoded"
	ImageCached  ImageResult = "cached"
	ImageSkipped ImageResult = "skipped"
	ImageFailed  ImageResult = "failed"
)

// Recorder defines observability hooks for build, stage, and plugin metrics.
// Implementations may forward to Prometheus or elsewhere. All methods must be
// safe on the zero value so a NoopRecorder can be injected by default.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	ObservePluginDuration(plugin string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|warning|failed|canceled
	IncPageResult(result string)    // result: built|skipped|failed
	IncImageResult(result ImageResult)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)          {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration)  {}
func (NoopRecorder) ObservePluginDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)          {}
func (NoopRecorder) IncBuildOutcome(string)                      {}
func (NoopRecorder) IncPageResult(string)                        {}
func (NoopRecorder) IncImageResult(ImageResult)                  {}
