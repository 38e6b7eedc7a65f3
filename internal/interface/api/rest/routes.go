package rest

const (
	// api
	RouteAPI = "/api"

	RouteProfile = RouteAPI + "/profile"

	// ops
	RouteHealth  = RouteAPI + "/health"
	RouteMetrics = RouteAPI + "/metrics"
)
