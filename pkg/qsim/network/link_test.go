package network

type fakeVehicle struct {
	id      uint64
	pce     float64
	maxV    float64
}

func (v fakeVehicle) VehicleID() uint64 { return v.id }
func (v fakeVehicle) PCE() float64      { return v.pce }
func (v fakeVehicle) MaxSpeed() float64 { return v.maxV }

func newTestLink() *LocalLink {
	// length 100m, freespeed 10m/s -> 10s traversal; capacity 3600/h ->
	// 1 veh/s; sample_size 1, effective_cell_size 7.5.
	return NewLocalLink(1, 10, 20, 100, 10, 1, 3600, 1, 7.5, 10)
}
