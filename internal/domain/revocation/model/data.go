package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
)

const DefaultHashAlgorithm = "SHA-256"

// RevokedData identifies the target of a revocation. The set of
// implementations is closed: TokenData, PasswordData and ClientData.
type RevokedData interface {
	Type() RevocationType
	check() error
}

type TokenData struct {
	TokenHash     string `json:"token_hash" validate:"required,max=512"`
	HashAlgorithm string `json:"hash_algorithm,omitempty" validate:"omitempty,oneof=SHA-256 SHA-384 SHA-512"`
}

type PasswordData struct {
	Username     string `json:"username" validate:"required,max=256"`
	IssuedBefore int64  `json:"issued_before" validate:"gte=0"`
}

type ClientData struct {
	ClientID     string `json:"client_id" validate:"required,max=256"`
	IssuedBefore int64  `json:"issued_before" validate:"gte=0"`
}

func (TokenData) Type() RevocationType    { return TypeToken }
func (PasswordData) Type() RevocationType { return TypePassword }
func (ClientData) Type() RevocationType   { return TypeClient }

func (d TokenData) check() error {
	if strings.TrimSpace(d.TokenHash) == "" {
		return customErrors.NewInvalidArgument("token_hash is required")
	}
	return nil
}

func (d PasswordData) check() error {
	if strings.TrimSpace(d.Username) == "" {
		return customErrors.NewInvalidArgument("username is required")
	}
	if d.IssuedBefore < 0 {
		return customErrors.NewInvalidArgument("issued_before must not be negative")
	}
	return nil
}

func (d ClientData) check() error {
	if strings.TrimSpace(d.ClientID) == "" {
		return customErrors.NewInvalidArgument("client_id is required")
	}
	if d.IssuedBefore < 0 {
		return customErrors.NewInvalidArgument("issued_before must not be negative")
	}
	return nil
}

// DecodeData picks the concrete payload shape from t. Unknown fields are
// rejected so a payload for one type cannot be smuggled in under another.
func DecodeData(t RevocationType, raw []byte) (RevokedData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, customErrors.NewInvalidArgument("data is required")
	}

	switch t {
	case TypeToken:
		var d TokenData
		if err := strictUnmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case TypePassword:
		var d PasswordData
		if err := strictUnmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case TypeClient:
		var d ClientData
		if err := strictUnmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, customErrors.NewInvalidArgument(fmt.Sprintf("unknown revocation type %q", t))
	}
}

func ParseSubmission(typ string, raw []byte) (Submission, error) {
	t, err := ParseType(typ)
	if err != nil {
		return Submission{}, err
	}
	data, err := DecodeData(t, raw)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Type: t, Data: data}, nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return customErrors.NewInvalidArgument("malformed data: " + err.Error())
	}
	return nil
}

type recordJSON struct {
	Type      RevocationType  `json:"type"`
	Data      json.RawMessage `json:"data"`
	RevokedAt int64           `json:"revoked_at"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{Type: r.Type, Data: data, RevokedAt: r.RevokedAt})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var aux recordJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t, err := ParseType(string(aux.Type))
	if err != nil {
		return err
	}
	data, err := DecodeData(t, aux.Data)
	if err != nil {
		return err
	}
	*r = Record{Type: t, Data: data, RevokedAt: aux.RevokedAt}
	return nil
}
