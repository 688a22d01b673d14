package dto

import (
	"encoding/json"
	"fmt"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
)

type SubmitDTO struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	// RevokedAt is never accepted from callers; it is decoded only to
	// reject requests that carry it.
	RevokedAt *int64 `json:"revoked_at,omitempty"`
}

func (d SubmitDTO) Submission() (model.Submission, error) {
	if d.RevokedAt != nil {
		return model.Submission{}, customErrors.NewInvalidArgument("revoked_at is assigned by the server")
	}
	return model.ParseSubmission(d.Type, d.Data)
}

type BatchDTO struct {
	Revocations []SubmitDTO `json:"revocations"`
}

func (b BatchDTO) Submissions() ([]model.Submission, error) {
	if len(b.Revocations) == 0 {
		return nil, customErrors.NewInvalidArgument("revocations must not be empty")
	}
	out := make([]model.Submission, 0, len(b.Revocations))
	for i, d := range b.Revocations {
		sub, err := d.Submission()
		if err != nil {
			return nil, fmt.Errorf("revocation %d: %w", i, err)
		}
		out = append(out, sub)
	}
	return out, nil
}

type Meta struct {
	ServerTime int64 `json:"server_time"`
}

type QueryResponse struct {
	Meta        Meta           `json:"meta"`
	Revocations []model.Record `json:"revocations"`
}

type BatchResponse struct {
	Revocations []model.Record `json:"revocations"`
	Error       string         `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
