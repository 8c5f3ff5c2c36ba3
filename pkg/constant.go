package pkg

import "strings"

// enum of travel_mode
type TravelMode uint8

const (
	FOOT TravelMode = iota
	BIKE
	CAR
)

const DEFAULT_TRAVEL_MODE = FOOT

var TravelModes = []TravelMode{FOOT, BIKE, CAR}

func (m TravelMode) String() string {
	switch m {
	case FOOT:
		return "foot"
	case BIKE:
		return "bike"
	case CAR:
		return "car"
	default:
		return "unknown"
	}
}

func (m TravelMode) IsValid() bool {
	switch m {
	case FOOT, BIKE, CAR:
		return true
	default:
		return false
	}
}

// GetTravelMode. parse travel mode from the selector value. accepts the
// names used by the mobile client and the common routing-engine aliases.
func GetTravelMode(mode string) (TravelMode, bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "foot", "walk", "walking", "pedestrian":
		return FOOT, true
	case "bike", "bicycle", "biking", "cycling":
		return BIKE, true
	case "car", "auto", "drive", "driving":
		return CAR, true
	default:
		return DEFAULT_TRAVEL_MODE, false
	}
}
