package events

// Live-channel pub/sub channel prefixes.
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixUser         = "channel:user:"
	ChannelPrefixCall         = "channel:call:"
	ChannelPrefixTyping       = "channel:typing:"
	ChannelPrefixPresence     = "channel:presence:"
	ChannelSystemOutbox       = "channel:system:outbox"
)

// RouteChannel maps an envelope to the channel its subscribers filter on.
// Message events are keyed by conversation, notifications by receiver, call
// events by the mailbox owner (the receiver).
func RouteChannel(env Envelope) string {
	switch env.AggregateType {
	case AggregateTypeMessage:
		return ChannelPrefixConversation + env.AggregateID
	case AggregateTypeNotification:
		return ChannelPrefixUser + env.AggregateID
	case AggregateTypeCall:
		return ChannelPrefixCall + env.AggregateID
	case AggregateTypeTyping:
		return ChannelPrefixTyping + env.AggregateID
	case AggregateTypePresence:
		return ChannelPrefixPresence + env.AggregateID
	case AggregateTypeConversation:
		return ChannelPrefixConversation + env.AggregateID
	default:
		return ChannelSystemOutbox
	}
}
