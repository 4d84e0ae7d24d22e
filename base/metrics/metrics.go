package metrics

const (
	TuningIterationsH = "The total number of outer tuning iterations performed"
	TuningIterationsN = "stringtuner_tuning_iterations"
	TuningRunsH       = "The total number of tuning runs by final state"
	TuningRunsN       = "stringtuner_tuning_runs"
	TuningResidualH   = "The largest remaining |target - current| frequency difference of the last run in Hz"
	TuningResidualN   = "stringtuner_tuning_residual_hz"
	TuningTurnsH      = "The total number of peg turns applied to strings"
	TuningTurnsN      = "stringtuner_tuning_turns"

	ServerReqsServedH   = "The total number of HTTP requests served"
	ServerReqsServedN   = "stringtuner_server_reqs_served"
	ServerReqsRejectedH = "The total number of HTTP requests rejected as invalid"
	ServerReqsRejectedN = "stringtuner_server_reqs_rejected"

	SurfaceCellsH = "The total number of lookup table cells evaluated"
	SurfaceCellsN = "stringtuner_surface_cells"
)
