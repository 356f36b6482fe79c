package api

import "github.com/dlattice/tessera/internal/diag"

// TileStatus is one entry of the process's tile-ownership map: which
// rank owns tile (Row, Col) and whether this process currently holds a
// resident replica of it.
type TileStatus struct {
	Row       int  `json:"row"`
	Col       int  `json:"col"`
	OwnerRank int  `json:"owner_rank"`
	Resident  bool `json:"resident"`
}

// StatusResponse is the JSON body of GET /v1/status: the full
// tile-ownership map plus the scheduler's current in-flight task count.
type StatusResponse struct {
	Rank      int          `json:"rank"`
	Mt        int          `json:"mt"`
	Nt        int          `json:"nt"`
	Tiles     []TileStatus `json:"tiles"`
	InFlight  int64        `json:"in_flight_tasks"`
}

// DiagnosticsResponse is the JSON body of GET /v1/diagnostics: a direct
// pass-through of the driver's diagnostics channel snapshot.
type DiagnosticsResponse struct {
	diag.Snapshot
}

// ResponseError is the JSON error envelope shape, minus the fields that
// only make sense for an inference API.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
