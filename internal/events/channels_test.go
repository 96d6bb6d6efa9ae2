package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteChannel(t *testing.T) {
	cases := []struct {
		aggregateType string
		aggregateID   string
		want          string
	}{
		{AggregateTypeMessage, "c1", "channel:conversation:c1"},
		{AggregateTypeConversation, "c1", "channel:conversation:c1"},
		{AggregateTypeNotification, "u1", "channel:user:u1"},
		{AggregateTypeCall, "u1", "channel:call:u1"},
		{AggregateTypeTyping, "u1", "channel:typing:u1"},
		{AggregateTypePresence, "u1", "channel:presence:u1"},
		{"unknown", "x", ChannelSystemOutbox},
	}
	for _, c := range cases {
		env := Envelope{AggregateType: c.aggregateType, AggregateID: c.aggregateID}
		assert.Equal(t, c.want, RouteChannel(env), c.aggregateType)
	}
}
