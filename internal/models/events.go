package models

import "time"

// StatusChange is the payload of the *.status.changed events. It is emitted
// after the row is durably written, so subscribers always observe committed
// state.
type StatusChange struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Ts     time.Time `json:"ts"`
}
