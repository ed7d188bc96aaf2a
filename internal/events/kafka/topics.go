package kafka

// Topic names for saga lifecycle events.
const (
	TopicSagaCompleted   = "sagas.lifecycle.completed"
	TopicSagaCompensated = "sagas.lifecycle.compensated"
	TopicSagaFatal       = "sagas.lifecycle.fatal"
)

// GetAllTopics returns every topic this service publishes to.
func GetAllTopics() []string {
	return []string{
		TopicSagaCompleted,
		TopicSagaCompensated,
		TopicSagaFatal,
	}
}
