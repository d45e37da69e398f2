package adb

// ConnEventKind enumerates the connection-state transitions a Conn
// broadcasts to subscribers (spec.md §9 "listener callback lists" ->
// observer channel, generalising the source's callback-list idiom).
type ConnEventKind int

const (
	EventConnected ConnEventKind = iota
	EventShutdown
)

// ConnEvent is one entry on a Conn's Events() channel.
type ConnEvent struct {
	Kind  ConnEventKind
	Cause error
}
