package grpc

import (
	"encoding/json"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
)

type SubmitRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	// RevokedAt is decoded only to be refused; the server clock stamps records.
	RevokedAt *int64 `json:"revoked_at,omitempty"`
}

type QueryRequest struct {
	// Since is a pointer so an omitted watermark can be told apart from 0.
	Since *int64 `json:"since"`
}

type QueryResponse struct {
	ServerTime  int64          `json:"server_time"`
	Revocations []model.Record `json:"revocations"`
}
