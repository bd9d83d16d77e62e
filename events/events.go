package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/livetrack/types/sample"
)

// LiveFeed is emitted for every envelope the push channel accepts:
// live samples after validation, dedupe and storage, route changes, and session ends.
// Websocket fan-out subscribes to it.
var LiveFeed = event.FeedOf[sample.Envelope]{}

// MalformedFeed carries the raw bodies of rejected publishes.
var MalformedFeed = event.FeedOf[[]byte]{}
