package quality

// Parameter status labels.
const (
	ParamExcellent = "Excellent"
	ParamGood      = "Good"
	ParamFair      = "Fair"
	ParamPoor      = "Poor"
	ParamVeryPoor  = "Very Poor"
)

// Sampling locations.
const (
	Inlet  = "inlet"
	Outlet = "outlet"
)

// ParameterStatus grades one measured value. ok is false for an unknown
// parameter. Location defaults to outlet, whose limits are stricter.
func ParameterStatus(param string, value float64, location string) (string, bool) {
	if location == "" {
		location = Outlet
	}

	switch param {
	case "ph":
		if value < 6.0 || value > 9.0 {
			return ParamVeryPoor, true
		}
		if value < 6.5 || value > 8.5 {
			return ParamPoor, true
		}
		return ParamExcellent, true

	case "temperature":
		if value < 20 || value > 38 {
			return ParamPoor, true
		}
		if value > 35 {
			return ParamFair, true
		}
		if value <= 30 {
			return ParamExcellent, true
		}
		return ParamGood, true

	case "tds":
		limit := 2000.0
		if location == Outlet {
			limit = 1000
		}
		return graded(value, limit, 1.2, 0.5, 0.75), true

	case "turbidity":
		limit := 400.0
		if location == Outlet {
			limit = 25
		}
		return graded(value, limit, 1.5, 0.3, 0.6), true
	}
	return "", false
}

func graded(value, limit, veryPoor, excellent, good float64) string {
	switch {
	case value > limit*veryPoor:
		return ParamVeryPoor
	case value > limit:
		return ParamPoor
	case value <= limit*excellent:
		return ParamExcellent
	case value <= limit*good:
		return ParamGood
	}
	return ParamFair
}
