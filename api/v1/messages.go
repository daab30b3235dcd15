// Package apiv1 is the gRPC contract of the stress runner daemon. Messages
// travel as google.protobuf.Struct values holding the JSON form of the types
// below, so the service needs no generated code.
package apiv1

import (
	"github.com/drericflores/hstp/pkg/lib"
)

type SubmitRequest struct {
	Spec lib.JobSpec `json:"spec"`
}

type SubmitResponse struct {
	ID string `json:"id"`
}

type StopRequest struct {
	ID string `json:"id"`
}

type StopResponse struct {
	Record lib.Record `json:"record"`
}

type StatusRequest struct {
	ID string `json:"id"`
}

type StatusResponse struct {
	Record lib.Record `json:"record"`
}

type ListRequest struct{}

type ListResponse struct {
	Records []lib.Record `json:"records"`
}

// EventsRequest opens the live feed. Replay asks for up to that many retained
// events before live ones; JobID limits job events to one job while metric
// events are always delivered.
type EventsRequest struct {
	Replay int    `json:"replay,omitempty"`
	JobID  string `json:"job_id,omitempty"`
}
