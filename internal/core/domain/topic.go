package domain

// Topic is a named broadcast channel a connection can subscribe to.
type Topic string

const (
	TopicOrders  Topic = "orders"
	TopicUpdates Topic = "updates"
	TopicSystem  Topic = "system"
)

// IsValidTopic reports whether s names a known topic.
func IsValidTopic(s string) bool {
	switch Topic(s) {
	case TopicOrders, TopicUpdates, TopicSystem:
		return true
	}
	return false
}

// FilterValidTopics returns the subset of requested names that are known
// topics. Invalid entries are dropped silently, preserving request order.
func FilterValidTopics(requested []string) []Topic {
	valid := make([]Topic, 0, len(requested))
	for _, s := range requested {
		if IsValidTopic(s) {
			valid = append(valid, Topic(s))
		}
	}
	return valid
}
