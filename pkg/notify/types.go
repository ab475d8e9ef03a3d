// Package notify contains the domain model shared by the channel adapters, the
// dispatch pipeline and the job tracker.
package notify

import "time"

// Status is the result of a single channel attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome is what one channel produced for one target. A target is either a
// single URL or a batch description for channels that accept URL lists.
type Outcome struct {
	Channel    string    `json:"channel" firestore:"channel"`
	Target     string    `json:"target" firestore:"target"`
	Status     Status    `json:"status" firestore:"status"`
	StatusCode int       `json:"status_code,omitempty" firestore:"status_code,omitempty"`
	Error      string    `json:"error,omitempty" firestore:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp" firestore:"timestamp"`
}

// Succeeded reports whether the channel accepted the notification.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Success builds a successful outcome stamped with the current time.
func Success(channel, target string, statusCode int) Outcome {
	return Outcome{
		Channel:    channel,
		Target:     target,
		Status:     StatusSuccess,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

// Failure builds a failed outcome. statusCode is zero when no response was received.
func Failure(channel, target string, statusCode int, reason string) Outcome {
	return Outcome{
		Channel:    channel,
		Target:     target,
		Status:     StatusFailed,
		StatusCode: statusCode,
		Error:      reason,
		Timestamp:  time.Now().UTC(),
	}
}

// URLResult groups the outcomes of every channel attempted for one URL, in
// invocation order. An empty Outcomes slice is valid (no channel applied).
type URLResult struct {
	URL       string    `json:"url" firestore:"url"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	Outcomes  []Outcome `json:"methods_used" firestore:"outcomes"`
}

// Succeeded is true when at least one channel succeeded for the URL.
func (r URLResult) Succeeded() bool {
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			return true
		}
	}
	return false
}

// Batch is a completed job: the per-URL results plus the outcomes of channels
// that were called once for the whole URL list.
type Batch struct {
	ID          string      `json:"job_id" firestore:"id"`
	URLCount    int         `json:"url_count" firestore:"url_count"`
	StartedAt   time.Time   `json:"started_at" firestore:"started_at"`
	CompletedAt time.Time   `json:"completed_at" firestore:"completed_at"`
	Results     []URLResult `json:"results" firestore:"results"`
	Submissions []Outcome   `json:"submissions,omitempty" firestore:"submissions"`
}
