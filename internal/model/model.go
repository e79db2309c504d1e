package model

import (
	"math"
	"time"
)

// Distance is a network distance in edge-weight units.
type Distance int64

// Unreachable marks a node with no known path from the source.
const Unreachable Distance = math.MaxInt64

// Add returns d+w, saturating at Unreachable.
func (d Distance) Add(w int64) Distance {
	if d == Unreachable {
		return Unreachable
	}
	if w > 0 && d > Unreachable-Distance(w) {
		return Unreachable
	}
	return d + Distance(w)
}

// Reachable reports whether d is a real distance.
func (d Distance) Reachable() bool { return d != Unreachable }

type Node struct {
	ID int64 `json:"id"`
	X  int64 `json:"x"`
	Y  int64 `json:"y"`
}

// Edge is one road segment. A graph stores it in both directions.
type Edge struct {
	NodeA  int64 `json:"node_a_id"`
	NodeB  int64 `json:"node_b_id"`
	Weight int64 `json:"weight"`
}

// Reverse returns the same segment traversed from NodeB to NodeA.
func (e Edge) Reverse() Edge {
	return Edge{NodeA: e.NodeB, NodeB: e.NodeA, Weight: e.Weight}
}

type Order struct {
	ID       int64
	ClientID int64
	NodeID   int64
	AreaID   int64
	Status   string
	CarValue float64
	OrderAt  time.Time
}

const (
	TruckAvailable = "available"
	TruckBusy      = "busy"
	TruckOffline   = "offline"
)

type TowTruck struct {
	ID        int64
	DriverID  int64
	Status    string
	AreaID    int64
	NodeID    int64
	UpdatedAt time.Time
}

// TruckFilter narrows a tow truck listing. Page is zero-based. A negative
// PageSize returns every match.
type TruckFilter struct {
	Page     int
	PageSize int
	Status   string
	AreaID   *int64
}

// TowTruckDTO is the external representation of a tow truck.
type TowTruckDTO struct {
	ID        int64     `json:"id"`
	DriverID  int64     `json:"driver_id"`
	Status    string    `json:"status"`
	AreaID    int64     `json:"area_id"`
	NodeID    int64     `json:"node_id"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func NewTowTruckDTO(t TowTruck) TowTruckDTO {
	return TowTruckDTO{
		ID:        t.ID,
		DriverID:  t.DriverID,
		Status:    t.Status,
		AreaID:    t.AreaID,
		NodeID:    t.NodeID,
		UpdatedAt: t.UpdatedAt,
	}
}

type NearestTowTruckResponse struct {
	Found      bool         `json:"found"`
	Reason     string       `json:"reason,omitempty"`
	DispatchID string       `json:"dispatch_id"`
	Distance   *int64       `json:"distance,omitempty"`
	TowTruck   *TowTruckDTO `json:"tow_truck,omitempty"`
}

type DistanceResponse struct {
	AreaID    int64  `json:"area_id"`
	Src       int64  `json:"src"`
	Dst       int64  `json:"dst"`
	Reachable bool   `json:"reachable"`
	Distance  *int64 `json:"distance,omitempty"`
}
