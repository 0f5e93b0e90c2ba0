package filesubmission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload results used as metric labels.
const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
	resultNotFound  = "not_found"
)

type Metrics struct {
	UploadsStarted      prometheus.Counter
	UploadsFinished     *prometheus.CounterVec
	BytesUploaded       prometheus.Counter
	SubmissionsFinished *prometheus.CounterVec
	SubmitDuration      prometheus.Histogram
}

// NewMetrics creates the pipeline metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UploadsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "gophsubmit_uploads_started_total",
			Help: "Total number of file uploads started",
		}),
		UploadsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gophsubmit_uploads_finished_total",
			Help: "File uploads finished by result",
		}, []string{"result"}),
		BytesUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "gophsubmit_upload_bytes_total",
			Help: "Total bytes sent by file uploads",
		}),
		SubmissionsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gophsubmit_submissions_finished_total",
			Help: "Submissions that reached a terminal state, by state",
		}, []string{"state"}),
		SubmitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gophsubmit_submit_duration_seconds",
			Help:    "Duration of create-submission calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}
