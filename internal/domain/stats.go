package domain

// DispatchStats - снимок состояния и счётчиков сессии диспетчеризации.
type DispatchStats struct {
	State    string `json:"state"`
	Strategy string `json:"strategy"`
	Topic    string `json:"topic"`

	Polled    int64 `json:"polled"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`

	Committed      int64 `json:"committed"`
	CommitCalls    int64 `json:"commit_calls"`
	CommitFailures int64 `json:"commit_failures"`

	QueueDepth     int `json:"queue_depth"`
	QueueCapacity  int `json:"queue_capacity"`
	QueueHighWater int `json:"queue_high_water"`
}
