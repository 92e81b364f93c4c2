package events

// TopicSaleCompleted is emitted once per successful checkout.
const TopicSaleCompleted = "sale.completed"

// DefaultTopics returns the topics the register emits.
func DefaultTopics() []string {
	return []string{TopicSaleCompleted}
}
