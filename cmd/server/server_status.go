package main

import (
	"context"

	apiv1 "github.com/drericflores/hstp/api/v1"
	"github.com/drericflores/hstp/pkg/lib"
)

func (s *StressRunnerServer) Status(ctx context.Context, request *apiv1.StatusRequest) (*apiv1.StatusResponse, error) {
	if err := s.checkOwnership(ctx, request.ID); err != nil {
		return nil, err
	}

	record, err := s.orch.Status(request.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &apiv1.StatusResponse{Record: record}, nil
}

// List returns the caller's jobs in submission order.
func (s *StressRunnerServer) List(ctx context.Context, _ *apiv1.ListRequest) (*apiv1.ListResponse, error) {
	all := s.orch.List()
	records := make([]lib.Record, 0, len(all))
	for _, rec := range all {
		if s.owns(ctx, rec.ID) {
			records = append(records, rec)
		}
	}
	return &apiv1.ListResponse{Records: records}, nil
}
