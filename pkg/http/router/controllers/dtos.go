package controllers

import (
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/http/usecases"
)

// locationDTO is a road node id, or a coordinate snapped to the nearest road node.
type locationDTO struct {
	NodeID *int64   `json:"node_id,omitempty"`
	Lat    *float64 `json:"lat,omitempty" validate:"omitempty,min=-90,max=90"`
	Lon    *float64 `json:"lon,omitempty" validate:"omitempty,min=-180,max=180"`
}

func (l locationDTO) toLocation() usecases.Location {
	return usecases.Location{NodeID: l.NodeID, Lat: l.Lat, Lon: l.Lon}
}

type deliveryRequestDTO struct {
	Pickup                 locationDTO `json:"pickup"`
	Delivery               locationDTO `json:"delivery"`
	PickupServiceSeconds   float64     `json:"pickup_service_seconds" validate:"gte=0"`
	DeliveryServiceSeconds float64     `json:"delivery_service_seconds" validate:"gte=0"`
}

type graphDTO struct {
	Nodes    []da.Node        `json:"nodes" validate:"required,min=1"`
	Segments []da.RoadSegment `json:"segments"`
}

type demandRequest struct {
	Graph         *graphDTO            `json:"graph,omitempty"`
	Depot         locationDTO          `json:"depot"`
	DepartureTime string               `json:"departure_time,omitempty"`
	Requests      []deliveryRequestDTO `json:"requests" validate:"dive"`
}

func (d demandRequest) toDemandInput() usecases.DemandInput {
	in := usecases.DemandInput{
		Depot:         d.Depot.toLocation(),
		DepartureTime: d.DepartureTime,
		Requests:      make([]usecases.RequestInput, len(d.Requests)),
	}
	if d.Graph != nil {
		in.Graph = &usecases.GraphInput{Nodes: d.Graph.Nodes, Segments: d.Graph.Segments}
	}
	for i, r := range d.Requests {
		in.Requests[i] = usecases.RequestInput{
			Pickup:                 r.Pickup.toLocation(),
			Delivery:               r.Delivery.toLocation(),
			PickupServiceSeconds:   r.PickupServiceSeconds,
			DeliveryServiceSeconds: r.DeliveryServiceSeconds,
		}
	}
	return in
}

type planRequest struct {
	demandRequest
	// CourierCount 0 means as many couriers as MaxDurationSeconds needs.
	CourierCount int `json:"courier_count" validate:"gte=0"`
	// SpeedMetersPerSecond 0 means the server default.
	SpeedMetersPerSecond float64 `json:"speed_mps" validate:"gte=0"`
	MaxDurationSeconds   float64 `json:"max_duration_seconds" validate:"gte=0"`
}

func (p planRequest) toPlanInput() usecases.PlanInput {
	return usecases.PlanInput{
		DemandInput:          p.demandRequest.toDemandInput(),
		CourierCount:         p.CourierCount,
		SpeedMetersPerSecond: p.SpeedMetersPerSecond,
		MaxDurationSeconds:   p.MaxDurationSeconds,
	}
}

type nearestRequest struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// wsMessage is one websocket frame of the streaming planner.
type wsMessage struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error any    `json:"error,omitempty"`
}

const (
	WS_MESSAGE_COURIER = "courier"
	WS_MESSAGE_PLAN    = "plan"
	WS_MESSAGE_ERROR   = "error"
)
