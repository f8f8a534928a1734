package events

// ProgressEvent is the payload published on a job's progress channel.
type ProgressEvent struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	Processed    int     `json:"processed"`
	Total        int     `json:"total"`
	EtaSeconds   *int    `json:"eta_seconds"`
	ErrorMessage *string `json:"error_message"`
}
