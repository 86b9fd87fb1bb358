package scenario

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
)

func TestNetworkRoundTrip(t *testing.T) {
	nodes := []NodeRecord{{ID: 1, X: 0, Y: 0}, {ID: 2, X: 100, Y: 0}}
	links := []LinkRecord{{ID: 10, From: 1, To: 2, Length: 100, Freespeed: 10, Permlanes: 1, CapacityPerHour: 3600}}

	var buf bytes.Buffer
	if err := WriteNetwork(&buf, nodes, links); err != nil {
		t.Fatalf("WriteNetwork: %v", err)
	}

	net, err := ReadNetwork(&buf, 1.0, 7.5, 3600)
	if err != nil {
		t.Fatalf("ReadNetwork: %v", err)
	}
	if len(net.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(net.Nodes))
	}
	l, ok := net.Link(10)
	if !ok {
		t.Fatalf("link 10 not found")
	}
	if l.From() != 1 || l.To() != 2 {
		t.Errorf("link endpoints = %d->%d, want 1->2", l.From(), l.To())
	}
}

func TestPopulationRoundTrip(t *testing.T) {
	endTime := uint32(28800)
	travelTime := uint32(120)
	vehID := uint64(99)
	agents := []*agent.Agent{
		{
			ID: 1,
			Plan: agent.Plan{
				Activities: []agent.Activity{
					{Link: 1, ActType: "home", EndTime: &endTime},
					{Link: 2, ActType: "work"},
				},
				Legs: []agent.Leg{
					{Mode: "car", Route: agent.Route{
						Kind: agent.RouteNetwork, StartLink: 1, EndLink: 2,
						Links: []uint64{5, 6, 2}, TravelTime: &travelTime, VehicleID: &vehID,
					}},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := WritePopulation(&buf, agents); err != nil {
		t.Fatalf("WritePopulation: %v", err)
	}

	got, err := ReadPopulation(&buf)
	if err != nil {
		t.Fatalf("ReadPopulation: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d agents, want 1", len(got))
	}
	ag := got[0]
	if ag.ID != 1 || len(ag.Plan.Activities) != 2 || len(ag.Plan.Legs) != 1 {
		t.Fatalf("unexpected agent shape: %+v", ag)
	}
	if ag.Plan.Activities[0].ActType != "home" || *ag.Plan.Activities[0].EndTime != 28800 {
		t.Errorf("activity 0 = %+v", ag.Plan.Activities[0])
	}
	leg := ag.Plan.Legs[0]
	if leg.Mode != "car" || leg.Route.StartLink != 1 || leg.Route.EndLink != 2 {
		t.Errorf("leg = %+v", leg)
	}
	if len(leg.Route.Links) != 3 || leg.Route.Links[0] != 5 || leg.Route.Links[2] != 2 {
		t.Errorf("route links = %v, want [5 6 2]", leg.Route.Links)
	}
	if leg.Route.TravelTime == nil || *leg.Route.TravelTime != 120 {
		t.Errorf("travel time = %v, want 120", leg.Route.TravelTime)
	}
	if leg.Route.VehicleID == nil || *leg.Route.VehicleID != 99 {
		t.Errorf("vehicle id = %v, want 99", leg.Route.VehicleID)
	}
}

func TestPopulationUnmatchedPersonEndIsError(t *testing.T) {
	var buf bytes.Buffer
	writeRecordForTest(t, &buf, encodePersonEnd())
	if _, err := ReadPopulation(&buf); err == nil {
		t.Fatal("expected an error for an unmatched person-end record")
	}
}

func writeRecordForTest(t *testing.T, buf *bytes.Buffer, payload []byte) {
	t.Helper()
	bw := bufio.NewWriter(buf)
	if err := writeRecord(bw, payload); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestVehicleTypesRoundTrip(t *testing.T) {
	types := []agent.VehicleType{
		{ID: 1, Length: 7.5, Width: 1.0, MaxV: 16.6, PCE: 1.0, FlowEfficiencyFactor: 1.0, NetworkMode: "car", LevelOfDetail: agent.Network},
		{ID: 2, Length: 0, Width: 0, MaxV: 0, PCE: 0, FlowEfficiencyFactor: 0, NetworkMode: "walk", LevelOfDetail: agent.Teleported},
	}

	var buf bytes.Buffer
	if err := WriteVehicleTypes(&buf, types); err != nil {
		t.Fatalf("WriteVehicleTypes: %v", err)
	}

	got, err := ReadVehicleTypes(&buf)
	if err != nil {
		t.Fatalf("ReadVehicleTypes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d types, want 2", len(got))
	}
	if got[1].NetworkMode != "car" || got[1].LevelOfDetail != agent.Network {
		t.Errorf("type 1 = %+v", got[1])
	}
	if got[2].NetworkMode != "walk" || got[2].LevelOfDetail != agent.Teleported {
		t.Errorf("type 2 = %+v", got[2])
	}
}
