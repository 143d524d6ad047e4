package datastructure

import (
	"errors"
	"fmt"
	"math"

	"github.com/lintang-b-s/courierx/pkg/util"
)

var ErrInvalidServiceDuration = errors.New("service duration must be finite and non-negative")

// DeliveryRequest asks a courier to collect a parcel at the pickup node and drop it at the delivery node.
type DeliveryRequest struct {
	PickupNodeID           int64   `json:"pickup_node_id"`
	DeliveryNodeID         int64   `json:"delivery_node_id"`
	PickupServiceSeconds   float64 `json:"pickup_service_seconds"`
	DeliveryServiceSeconds float64 `json:"delivery_service_seconds"`
}

func NewDeliveryRequest(pickup, delivery int64, pickupService, deliveryService float64) DeliveryRequest {
	return DeliveryRequest{
		PickupNodeID:           pickup,
		DeliveryNodeID:         delivery,
		PickupServiceSeconds:   pickupService,
		DeliveryServiceSeconds: deliveryService,
	}
}

type Depot struct {
	NodeID int64 `json:"node_id"`
	// DepartureTime is a wall clock time of day such as "8:0:0", empty means midnight.
	DepartureTime string `json:"departure_time,omitempty"`
}

// DemandSet is the depot plus the ordered list of delivery requests of one planning run.
type DemandSet struct {
	Depot    Depot             `json:"depot"`
	Requests []DeliveryRequest `json:"requests"`
}

func NewDemandSet(depot Depot, requests []DeliveryRequest) DemandSet {
	return DemandSet{Depot: depot, Requests: requests}
}

func (d DemandSet) Validate() error {
	for i, r := range d.Requests {
		if r.PickupServiceSeconds < 0 || math.IsNaN(r.PickupServiceSeconds) || math.IsInf(r.PickupServiceSeconds, 0) ||
			r.DeliveryServiceSeconds < 0 || math.IsNaN(r.DeliveryServiceSeconds) || math.IsInf(r.DeliveryServiceSeconds, 0) {
			return fmt.Errorf("%w: request %d", ErrInvalidServiceDuration, i)
		}
	}
	if _, err := d.DepartureSeconds(); err != nil {
		return err
	}
	return nil
}

// DepartureSeconds returns the depot departure as seconds since midnight.
func (d DemandSet) DepartureSeconds() (float64, error) {
	if d.Depot.DepartureTime == "" {
		return 0, nil
	}
	return util.ParseClock(d.Depot.DepartureTime)
}

// ServiceByNode sums the service durations charged at each node. A node that is the pickup of one
// request and the delivery of another pays both.
func ServiceByNode(requests []DeliveryRequest) map[int64]float64 {
	service := make(map[int64]float64, 2*len(requests))
	for _, r := range requests {
		service[r.PickupNodeID] += r.PickupServiceSeconds
		service[r.DeliveryNodeID] += r.DeliveryServiceSeconds
	}
	return service
}
