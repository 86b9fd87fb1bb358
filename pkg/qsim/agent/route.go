package agent

// RouteKind discriminates the three Route variants spec.md §3 names.
type RouteKind uint8

const (
	RouteGeneric RouteKind = iota
	RouteNetwork
	RouteTransit
)

// Route is a sum type: Generic (teleported legs, no link-by-link
// path), Network (an ordered link traversal list), or Transit (a
// generic route plus a line/route description, no schedule modeled).
type Route struct {
	Kind RouteKind

	StartLink   uint64
	EndLink     uint64
	TravelTime  *uint32
	Distance    *float64
	VehicleID   *uint64

	// Network-only: every link after StartLink, in traversal order.
	// StartLink itself is entered directly at departure and is never
	// read back out of Links; a single-link route (StartLink==EndLink)
	// leaves this empty.
	Links []uint64

	// Transit-only.
	TransitLine  string
	TransitRoute string
}

// NextLink returns the link the agent should move onto next, given its
// current route cursor into Links, and whether one exists (false once
// the cursor has consumed the whole route, meaning the agent has
// arrived).
func (r Route) NextLink(cursor int) (uint64, bool) {
	if r.Kind != RouteNetwork {
		return 0, false
	}
	if cursor >= len(r.Links) {
		return 0, false
	}
	return r.Links[cursor], true
}

// AtEnd reports whether cursor has consumed every element of a network
// route.
func (r Route) AtEnd(cursor int) bool {
	if r.Kind != RouteNetwork {
		return true
	}
	return cursor >= len(r.Links)
}
