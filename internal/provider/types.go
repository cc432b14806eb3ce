package provider

import "errors"

var (
	// ErrUnavailable wraps transport failures, timeouts and 5xx responses.
	ErrUnavailable = errors.New("ranking provider unavailable")
	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrRejected is returned when the provider refuses a request outright.
	ErrRejected = errors.New("provider rejected request")
)

// State is the lifecycle state of a provider task.
type State string

const (
	StateQueued State = "queued"
	StateDone   State = "done"
	StateFailed State = "failed"
)

// TaskItem is one rank check submitted to the provider. Tag is echoed back and
// carries the keyword ID.
type TaskItem struct {
	Tag          string
	Term         string
	LocationCode int
	Language     string
	Device       string
}

// OrganicResult is a single organic search result.
type OrganicResult struct {
	Domain    string
	URL       string
	RankGroup int
}

// TaskStatus is the polled state of a task. Results are only populated when
// State is StateDone.
type TaskStatus struct {
	State   State
	Message string
	Results []OrganicResult
}

// provider status codes
const (
	codeOK          = 20000
	codeTaskCreated = 20100
	codeTaskHanded  = 40601
	codeTaskInQueue = 40602
)

type envelope struct {
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message"`
	Tasks         []apiTask `json:"tasks"`
}

type apiTask struct {
	ID            string          `json:"id"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message"`
	Data          map[string]any  `json:"data"`
	Result        []apiTaskResult `json:"result"`
}

type apiTaskResult struct {
	Keyword      string    `json:"keyword"`
	SearchVolume *int64    `json:"search_volume"`
	Items        []apiItem `json:"items"`
}

type apiItem struct {
	Type      string `json:"type"`
	RankGroup *int   `json:"rank_group"`
	Domain    string `json:"domain"`
	URL       string `json:"url"`
}

type postTask struct {
	Keyword      string `json:"keyword"`
	LocationCode int    `json:"location_code"`
	LanguageCode string `json:"language_code"`
	Device       string `json:"device"`
	Depth        int    `json:"depth"`
	Tag          string `json:"tag,omitempty"`
}

type volumeTask struct {
	Keywords     []string `json:"keywords"`
	LocationCode int      `json:"location_code"`
	LanguageCode string   `json:"language_code"`
}
