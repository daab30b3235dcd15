package main

import (
	"sync"

	apiv1 "github.com/drericflores/hstp/api/v1"
	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/eventbus"
	"github.com/drericflores/hstp/pkg/lib/orchestrator"
)

var logger = lib.Logger.WithField("component", "server")

// StressRunnerServer serves the orchestrator over gRPC. Every job belongs to
// the client that submitted it.
type StressRunnerServer struct {
	apiv1.UnimplementedStressRunnerServiceServer
	orch *orchestrator.Orchestrator
	bus  *eventbus.Bus

	mu     sync.RWMutex
	owners map[string]string
}

func NewStressRunnerServer(orch *orchestrator.Orchestrator, bus *eventbus.Bus) *StressRunnerServer {
	return &StressRunnerServer{
		orch:   orch,
		bus:    bus,
		owners: make(map[string]string),
	}
}
