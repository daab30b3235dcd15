package main

import (
	apiv1 "github.com/drericflores/hstp/api/v1"
	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/eventbus"
)

// Events streams the feed until the client goes away or the bus closes. Job
// events are limited to the caller's jobs; metric events go to everyone.
func (s *StressRunnerServer) Events(request *apiv1.EventsRequest, stream apiv1.EventsServer) error {
	ctx := stream.Context()

	if request.JobID != "" {
		if err := s.checkOwnership(ctx, request.JobID); err != nil {
			return err
		}
	}

	sub := s.bus.Subscribe(eventbus.WithReplay(request.Replay))
	defer sub.Close()

	for {
		ev, err := sub.Next(ctx)
		if lib.IsClosed(err) {
			return nil
		}
		if err != nil {
			return toStatus(err)
		}

		if ev.JobID != "" {
			if request.JobID != "" && ev.JobID != request.JobID {
				continue
			}
			if !s.owns(ctx, ev.JobID) {
				continue
			}
		}

		if err := stream.Send(ev); err != nil {
			return err
		}
	}
}
