package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit    int       // max results (0 = unlimited)
	After    int64     // sequence > After
	From     time.Time // timestamp >= From
	Purpose  string    // LLM events only
	Username string    // activity events only
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates token usage for one purpose or model.
type LLMUsageStats struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// Activity kinds recorded by the web server.
const (
	ActivityLogin        = "login"
	ActivityLogout       = "logout"
	ActivityRegister     = "register"
	ActivitySolve        = "solve"
	ActivityFeedback     = "feedback"
	ActivityQuizComplete = "quiz_complete"
	ActivityClassify     = "classify"
)

// ActivityEventData captures one user action.
type ActivityEventData struct {
	Username string
	Kind     string
	Detail   string
}

// ActivityEventRecord is a stored activity event.
type ActivityEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	ActivityEventData
}

// EventRepo provides append and query access to the event log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns one LLM event by ID.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)

	// LLMUsageByPurpose aggregates usage grouped by purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates usage grouped by model.
	LLMUsageByModel(ctx context.Context) ([]LLMUsageStats, error)

	// AppendActivity records a user action.
	AppendActivity(ctx context.Context, data ActivityEventData) error

	// QueryActivity returns activity events newest first.
	QueryActivity(ctx context.Context, opts QueryOpts) ([]ActivityEventRecord, error)
}
