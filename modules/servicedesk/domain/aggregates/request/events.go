package request

import "time"

type SubmittedEvent struct {
	Request Request
	ActorID string
}

type StatusChangedEvent struct {
	Request Request
	From    Status
	To      Status
	ActorID string
	At      time.Time
}

type CompletedEvent struct {
	Request Request
	From    Status
	ActorID string
}
