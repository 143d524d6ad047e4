package datastructure

import (
	"fmt"
	"strconv"
)

type StopType uint8

const (
	STOP_DEPOT StopType = iota
	STOP_PICKUP
	STOP_DELIVERY
	STOP_UNKNOWN
)

func (s StopType) String() string {
	switch s {
	case STOP_DEPOT:
		return "DEPOT"
	case STOP_PICKUP:
		return "PICKUP"
	case STOP_DELIVERY:
		return "DELIVERY"
	default:
		return "UNKNOWN"
	}
}

func (s StopType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StopType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "DEPOT":
		*s = STOP_DEPOT
	case "PICKUP":
		*s = STOP_PICKUP
	case "DELIVERY":
		*s = STOP_DELIVERY
	case "UNKNOWN":
		*s = STOP_UNKNOWN
	default:
		return fmt.Errorf("unknown stop type %q", string(b))
	}
	return nil
}

// StopLabel is the human readable name of a stop, e.g. "Pickup 42".
func StopLabel(t StopType, nodeId int64) string {
	id := strconv.FormatInt(nodeId, 10)
	switch t {
	case STOP_DEPOT:
		return "Depot"
	case STOP_PICKUP:
		return "Pickup " + id
	case STOP_DELIVERY:
		return "Delivery " + id
	default:
		return "Stop " + id
	}
}

// StopRoles classifies every POI node of the demand. The depot wins over everything, then a node that
// is a pickup of any request stays a pickup even if another request delivers there.
func StopRoles(demand DemandSet) map[int64]StopType {
	roles := make(map[int64]StopType, 1+2*len(demand.Requests))
	roles[demand.Depot.NodeID] = STOP_DEPOT
	for _, r := range demand.Requests {
		if _, ok := roles[r.PickupNodeID]; !ok {
			roles[r.PickupNodeID] = STOP_PICKUP
		}
	}
	for _, r := range demand.Requests {
		if _, ok := roles[r.DeliveryNodeID]; !ok {
			roles[r.DeliveryNodeID] = STOP_DELIVERY
		}
	}
	return roles
}

type TourStep struct {
	Index          int      `json:"index"`
	NodeID         int64    `json:"node_id"`
	Type           StopType `json:"type"`
	Label          string   `json:"label"`
	LegCost        float64  `json:"leg_cost"`
	CumulativeCost float64  `json:"cumulative_cost"`
}

// Tour is an ordered closed visit of POIs starting at the depot. The return leg to the depot is
// included in TotalCost but not listed as a step.
type Tour struct {
	Steps     []TourStep `json:"steps"`
	TotalCost float64    `json:"total_cost"`
	Optimal   bool       `json:"optimal"`
}

func (t Tour) NodeIDs() []int64 {
	ids := make([]int64, len(t.Steps))
	for i, s := range t.Steps {
		ids[i] = s.NodeID
	}
	return ids
}

type TimelineStep struct {
	NodeID            int64   `json:"node_id"`
	TravelSeconds     float64 `json:"travel_seconds"`
	ServiceSeconds    float64 `json:"service_seconds"`
	CumulativeSeconds float64 `json:"cumulative_seconds"`
	Arrival           string  `json:"arrival,omitempty"`
}

// CourierTour is the work assigned to one courier: its requests, visit order, leg paths and schedule.
type CourierTour struct {
	CourierIndex int               `json:"courier_index"`
	Requests     []DeliveryRequest `json:"requests"`
	Tour         Tour              `json:"tour"`
	Path         []int64           `json:"path"`
	// StopPositions index into Path where the courier arrives at each tour step.
	StopPositions  []int          `json:"stop_positions"`
	DistanceMeters float64        `json:"distance_meters"`
	TravelSeconds  float64        `json:"travel_seconds"`
	ServiceSeconds float64        `json:"service_seconds"`
	TotalSeconds   float64        `json:"total_seconds"`
	Timeline       []TimelineStep `json:"timeline"`
	Failed         bool           `json:"failed"`
	FailureReason  string         `json:"failure_reason,omitempty"`
}

func (ct CourierTour) IsEmpty() bool {
	return len(ct.Requests) == 0
}
