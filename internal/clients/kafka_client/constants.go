package kafka_client

import "time"

const KAFKA_TOPIC_JOB_EVENTS = "brand-jobs" // job status transitions

const (
	MAX_RETRIES   = 3
	RETRY_DELAY   = 200 * time.Millisecond
	FLUSH_TIMEOUT = 5 * time.Second
)
