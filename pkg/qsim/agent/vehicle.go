package agent

// LevelOfDetail selects whether a vehicle type's legs run through the
// network engine or are teleported.
type LevelOfDetail uint8

const (
	Network LevelOfDetail = iota
	Teleported
)

// VehicleType carries the physical and routing parameters every
// vehicle of this type shares.
type VehicleType struct {
	ID                  uint64
	Length              float64
	Width               float64
	MaxV                float64
	PCE                 float64
	FlowEfficiencyFactor float64
	NetworkMode         string
	LevelOfDetail       LevelOfDetail
}

// DefaultVehicleType is assigned to a vehicle id with no declared
// vehicles.xml/proto entry, matching the Garage's lazy-creation rule.
var DefaultVehicleType = VehicleType{
	ID:                   0,
	Length:               7.5,
	Width:                1.0,
	MaxV:                 1000, // effectively uncapped; link freespeed governs
	PCE:                  1.0,
	FlowEfficiencyFactor: 1.0,
	NetworkMode:          "car",
	LevelOfDetail:        Network,
}

// Vehicle is created when the leg engine unparks it at a departure,
// travels the network (or is teleported), and is parked again when
// the leg ends. It satisfies network.Vehicle.
type Vehicle struct {
	ID          uint64
	Type        VehicleType
	Driver      *Agent
	Passengers  []*Agent
	RouteCursor int
}

// VehicleID satisfies network.Vehicle.
func (v *Vehicle) VehicleID() uint64 { return v.ID }

// PCE satisfies network.Vehicle.
func (v *Vehicle) PCE() float64 { return v.Type.PCE }

// MaxSpeed satisfies network.Vehicle.
func (v *Vehicle) MaxSpeed() float64 { return v.Type.MaxV }

// NextLinkID reports the next link on the driver's current leg route,
// at the vehicle's own route cursor, and whether one exists (false
// once the route has been fully traversed).
func (v *Vehicle) NextLinkID() (uint64, bool) {
	route := v.Driver.CurrentLeg().Route
	return route.NextLink(v.RouteCursor)
}

// AdvanceRoute moves the vehicle's route cursor to the next link.
func (v *Vehicle) AdvanceRoute() { v.RouteCursor++ }
