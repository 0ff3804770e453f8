package clients

import "time"

const (
	SUBMIT_INITIAL_BACKOFF = 250 * time.Millisecond
	SUBMIT_MAX_BACKOFF     = 2 * time.Second
	MAX_ERROR_BODY         = 512
	DEFAULT_RESULTS_LIMIT  = "100"
	USER_AGENT             = "feedbot-client/1.0 (+https://github.com/spacesedan/feedbot)"
)

// Backend operations, used as metric labels and in errors.
const (
	OP_SUBMIT  = "submit"
	OP_RESULTS = "results"
	OP_HEALTH  = "health"
)
