package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventSnapshotUpdated     EventType = "snapshot_updated"
	EventBlockListUpdated    EventType = "block_list_updated"
	EventPriceHistoryUpdated EventType = "price_history_updated"
)

// Event represents one resolved fetch.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
