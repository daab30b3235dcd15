package main

import (
	"context"

	apiv1 "github.com/drericflores/hstp/api/v1"
	"github.com/drericflores/hstp/pkg/lib"
)

func (s *StressRunnerServer) Submit(ctx context.Context, request *apiv1.SubmitRequest) (*apiv1.SubmitResponse, error) {
	spec := request.Spec.Clone()
	if spec.ID == "" {
		spec.ID = lib.NewID()
	}

	// owned before it starts so the submitter sees its first events
	if err := s.claim(ctx, spec.ID); err != nil {
		return nil, err
	}

	id, err := s.orch.Submit(spec)
	if err != nil {
		// a rejected job never existed, its id is free again
		s.unclaim(spec.ID)
		logger.WithError(err).WithField("job", spec.ID).Info("submission refused")
		return nil, toStatus(err)
	}

	logger.WithField("job", id).WithField("command", spec.Command).Info("job submitted")
	return &apiv1.SubmitResponse{ID: id}, nil
}
