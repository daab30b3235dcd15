package main

import (
	"context"

	apiv1 "github.com/drericflores/hstp/api/v1"
)

func (s *StressRunnerServer) Stop(ctx context.Context, request *apiv1.StopRequest) (*apiv1.StopResponse, error) {
	if err := s.checkOwnership(ctx, request.ID); err != nil {
		return nil, err
	}

	record, err := s.orch.Stop(ctx, request.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	logger.WithField("job", request.ID).WithField("state", record.State).Info("job stopped")
	return &apiv1.StopResponse{Record: record}, nil
}
