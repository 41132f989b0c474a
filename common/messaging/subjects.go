package messaging

// Channel names used by the bridge when the configuration does not name one.
// Follow the pattern: {system}.{role}.{resource}
const (
	DefaultChannel = "ibridge.bridge.messages" // Commands and events sent to the bridge server
	HealthSubject  = "_HEALTH.ping"            // Requested by CheckClientHealth
)

// Queue group names for load-balanced consumers.
const (
	QueueBridgeWorkers = "bridge-workers" // Pool of bridge servers sharing one channel
)

// ReplyChannel returns the channel on which a client expects replies.
// Example: ibridge.bridge.messages.reply.client-7
func ReplyChannel(channel, clientID string) string {
	return channel + ".reply." + clientID
}
