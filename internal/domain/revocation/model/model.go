package model

import (
	"fmt"
	"strings"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
)

type RevocationType string

const (
	TypeToken    RevocationType = "TOKEN"
	TypePassword RevocationType = "PASSWORD"
	TypeClient   RevocationType = "CLIENT"
)

// Types lists every known variant; adding a variant means adding it here and
// to every switch that returns an error for unknown types.
var Types = []RevocationType{TypeToken, TypePassword, TypeClient}

// MaxRevokedAt is the last second storage ids can encode (48-bit milliseconds).
const MaxRevokedAt int64 = (1<<48 - 1) / 1000

func ParseType(s string) (RevocationType, error) {
	t := RevocationType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", customErrors.NewInvalidArgument(fmt.Sprintf("unknown revocation type %q", s))
	}
	return t, nil
}

func (t RevocationType) Valid() bool {
	switch t {
	case TypeToken, TypePassword, TypeClient:
		return true
	default:
		return false
	}
}

func (t RevocationType) String() string {
	return string(t)
}

// Submission is an unstamped revocation as handed in by a caller.
type Submission struct {
	Type RevocationType
	Data RevokedData
}

// Record is a stamped revocation. It is never modified after Stamp.
type Record struct {
	Type      RevocationType
	Data      RevokedData
	RevokedAt int64
}

func NewSubmission(data RevokedData) Submission {
	return Submission{Type: data.Type(), Data: data}
}

func (s Submission) Validate() error {
	if !s.Type.Valid() {
		return customErrors.NewInvalidArgument(fmt.Sprintf("unknown revocation type %q", s.Type))
	}
	if s.Data == nil {
		return customErrors.NewInvalidArgument("data is required")
	}
	if s.Data.Type() != s.Type {
		return customErrors.NewInvalidArgument(
			fmt.Sprintf("data of kind %s does not match type %s", s.Data.Type(), s.Type))
	}
	return s.Data.check()
}

// Stamp turns a submission into a record revoked at now. A zero issued_before
// cutoff becomes now, a missing token hash algorithm becomes the default.
func Stamp(s Submission, now int64) Record {
	data := s.Data
	switch d := s.Data.(type) {
	case TokenData:
		if d.HashAlgorithm == "" {
			d.HashAlgorithm = DefaultHashAlgorithm
		}
		data = d
	case PasswordData:
		if d.IssuedBefore == 0 {
			d.IssuedBefore = now
		}
		data = d
	case ClientData:
		if d.IssuedBefore == 0 {
			d.IssuedBefore = now
		}
		data = d
	}
	return Record{Type: s.Type, Data: data, RevokedAt: now}
}

func (r Record) Validate() error {
	if err := (Submission{Type: r.Type, Data: r.Data}).Validate(); err != nil {
		return err
	}
	if r.RevokedAt <= 0 {
		return customErrors.NewInvalidArgument("revoked_at must be assigned")
	}
	if r.RevokedAt > MaxRevokedAt {
		return customErrors.NewInvalidArgument(fmt.Sprintf("revoked_at %d is out of range", r.RevokedAt))
	}
	return nil
}
