package domain

// Throughput counts task completions within trailing time windows.
type Throughput struct {
	PerMinute     int `json:"per_minute"`
	PerFiveMinute int `json:"per_5_minutes"`
}

// AgentCounts aggregates agents by status.
type AgentCounts struct {
	Total      int `json:"total"`
	Running    int `json:"running"`
	Idle       int `json:"idle"`
	Terminated int `json:"terminated"`
}

// TaskCounts aggregates tasks by status. SuccessRate is a percentage
// rounded to one decimal place.
type TaskCounts struct {
	Total       int     `json:"total"`
	Queued      int     `json:"queued"`
	Running     int     `json:"running"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Metrics is a platform-wide snapshot.
type Metrics struct {
	Agents     AgentCounts `json:"agents"`
	Tasks      TaskCounts  `json:"tasks"`
	Throughput Throughput  `json:"throughput"`
}
