// Package envelope is the storage representation shared by the durable
// backends: a record plus a unique, time-ordered id so that identical
// submissions are kept as distinct entries.
package envelope

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/oklog/ulid/v2"
)

type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	RevokedAt int64           `json:"revoked_at"`
}

func NewID(revokedAt int64) (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Unix(revokedAt, 0)), rand.Reader)
	if err != nil {
		return "", customErrors.NewInvalidArgument(fmt.Sprintf("revoked_at %d: %v", revokedAt, err))
	}
	return id.String(), nil
}

func Wrap(rec model.Record) (Envelope, error) {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return Envelope{}, customErrors.WrapInternal(err, "marshal revoked data")
	}
	id, err := NewID(rec.RevokedAt)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        id,
		Type:      rec.Type.String(),
		Data:      data,
		RevokedAt: rec.RevokedAt,
	}, nil
}

func (e Envelope) Record() (model.Record, error) {
	t, err := model.ParseType(e.Type)
	if err != nil {
		return model.Record{}, customErrors.WrapInternal(err, "stored entry "+e.ID)
	}
	data, err := model.DecodeData(t, e.Data)
	if err != nil {
		return model.Record{}, customErrors.WrapInternal(err, "stored entry "+e.ID)
	}
	return model.Record{Type: t, Data: data, RevokedAt: e.RevokedAt}, nil
}

func Marshal(rec model.Record) ([]byte, error) {
	env, err := Wrap(rec)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func Unmarshal(b []byte) (model.Record, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return model.Record{}, customErrors.WrapInternal(err, "decode stored entry")
	}
	return env.Record()
}
