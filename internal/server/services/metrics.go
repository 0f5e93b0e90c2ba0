package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TargetsIssued      prometheus.Counter
	UploadsAccepted    prometheus.Counter
	UploadsRejected    prometheus.Counter
	BytesReceived      prometheus.Counter
	SubmissionsCreated prometheus.Counter
}

// NewMetrics creates the service metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TargetsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "gophsubmit_server_targets_issued_total",
			Help: "Upload targets handed out",
		}),
		UploadsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "gophsubmit_server_uploads_accepted_total",
			Help: "File uploads stored",
		}),
		UploadsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "gophsubmit_server_uploads_rejected_total",
			Help: "File uploads rejected because of their size",
		}),
		BytesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "gophsubmit_server_upload_bytes_total",
			Help: "Bytes of file content stored",
		}),
		SubmissionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "gophsubmit_server_submissions_created_total",
			Help: "Submissions created",
		}),
	}
}
