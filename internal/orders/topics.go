package orders

import "strconv"

const (
	TopicOrderCreated    = "order.created"
	TopicOrderPaid       = "order.paid"
	TopicTrackingUpdated = "order.tracking.updated"
)

// Partition key = order id, so every event of one order keeps its ordering.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
