package pkg

const (
	INF_WEIGHT float64 = 1e15

	// bike courier speed, 15 km/h
	DEFAULT_COURIER_SPEED_MPS = 4.17
	DEFAULT_SNAP_RADIUS_KM    = 0.2
	DEFAULT_LANDMARK_COUNT    = 8
	MAX_LANDMARK_COUNT        = 64

	// node expansions between two budget/cancellation checks of the tsp search
	SOLVER_CHECK_INTERVAL = 4096
)

type OsmHighwayType uint8

// enum buat osm highway buat routing: https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
const (
	MOTORWAY       OsmHighwayType = 0
	TRUNK          OsmHighwayType = 1
	PRIMARY        OsmHighwayType = 2
	SECONDARY      OsmHighwayType = 3
	TERTIARY       OsmHighwayType = 4
	RESIDENTIAL    OsmHighwayType = 5
	SERVICE        OsmHighwayType = 6
	UNCLASSIFIED   OsmHighwayType = 7
	MOTORWAY_LINK  OsmHighwayType = 8
	TRUNK_LINK     OsmHighwayType = 9
	PRIMARY_LINK   OsmHighwayType = 10
	SECONDARY_LINK OsmHighwayType = 11
	TERTIARY_LINK  OsmHighwayType = 12
	LIVING_STREET  OsmHighwayType = 13
	ROAD           OsmHighwayType = 14
	TRACK          OsmHighwayType = 15
	MOTORROAD      OsmHighwayType = 16
	UNKNOWN        OsmHighwayType = 17
)

func GetHighwayType(roadType string) OsmHighwayType {
	switch roadType {
	case "motorway":
		return MOTORWAY
	case "trunk":
		return TRUNK
	case "primary":
		return PRIMARY
	case "secondary":
		return SECONDARY
	case "tertiary":
		return TERTIARY
	case "unclassified":
		return UNCLASSIFIED
	case "residential":
		return RESIDENTIAL
	case "service":
		return SERVICE
	case "motorway_link":
		return MOTORWAY_LINK
	case "trunk_link":
		return TRUNK_LINK
	case "primary_link":
		return PRIMARY_LINK
	case "secondary_link":
		return SECONDARY_LINK
	case "tertiary_link":
		return TERTIARY_LINK
	case "living_street":
		return LIVING_STREET
	case "road":
		return ROAD
	case "track":
		return TRACK
	case "motorroad":
		return MOTORROAD
	default:
		return UNKNOWN
	}
}

// CourierRoutable. couriers ride bikes/scooters, motorways and motorroads are not usable by them.
func (h OsmHighwayType) CourierRoutable() bool {
	switch h {
	case MOTORWAY, MOTORWAY_LINK, MOTORROAD, UNKNOWN:
		return false
	default:
		return true
	}
}

// ImpliedOneWay. osm ways of these types are one-way even without oneway tag
func (h OsmHighwayType) ImpliedOneWay() bool {
	return h == MOTORWAY || h == MOTORWAY_LINK
}
