package kafka_client

import "github.com/spacesedan/feedbot/config"

type KafkaConfig struct {
	Broker string
	Topic  string
}

// GetKafkaConfig returns the producer settings, or false when no broker is
// configured.
func GetKafkaConfig(cfg config.Config) (KafkaConfig, bool) {
	if cfg.KafkaBroker == "" {
		return KafkaConfig{}, false
	}
	topic := cfg.KafkaJobEventsTopic
	if topic == "" {
		topic = KAFKA_TOPIC_JOB_EVENTS
	}
	return KafkaConfig{Broker: cfg.KafkaBroker, Topic: topic}, true
}
