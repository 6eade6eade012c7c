package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	CacheKeyPrefixDecision = "decision:"
)

const (
	DefaultDecisionTopic = "compliance_decisions"
)

const (
	DefaultDecisionCacheTTLSeconds = 3600
)
