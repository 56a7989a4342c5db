package httptransport

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"termtrust/internal/activity"
	"termtrust/internal/identity"
	dErrors "termtrust/pkg/domain-errors"
)

const maxSignalLen = 512

// InitRequest carries the signal bundle for identity initialization. Every
// field is optional; validation only rejects abusive sizes, never absence.
type InitRequest struct {
	Token            string                  `json:"token"`
	Fingerprint      string                  `json:"fingerprint"`
	SessionID        string                  `json:"session_id"`
	LegacyID         string                  `json:"legacy_id"`
	RegisteredUserID string                  `json:"registered_user_id"`
	Device           identity.DeviceMetadata `json:"device"`
	Telemetry        identity.Telemetry      `json:"telemetry"`
}

func (r InitRequest) Validate() error {
	for name, v := range map[string]string{
		"token":       r.Token,
		"fingerprint": r.Fingerprint,
		"session_id":  r.SessionID,
		"legacy_id":   r.LegacyID,
	} {
		if len(v) > maxSignalLen {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("%s exceeds maximum length", name))
		}
	}
	return nil
}

func (r InitRequest) Signals() identity.Signals {
	return identity.Signals{
		Token:            r.Token,
		Fingerprint:      r.Fingerprint,
		SessionID:        r.SessionID,
		LegacyID:         r.LegacyID,
		RegisteredUserID: r.RegisteredUserID,
		Device:           r.Device,
		Telemetry:        r.Telemetry,
	}
}

// PageViewRequest tracks one page view for a known token.
type PageViewRequest struct {
	Token string `json:"token"`
}

func (r PageViewRequest) Validate() error {
	if r.Token == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token is required")
	}
	if len(r.Token) > maxSignalLen {
		return dErrors.New(dErrors.CodeBadRequest, "token exceeds maximum length")
	}
	return nil
}

// RecordRequest is sent by the content collaborator whenever owned content is
// created, so ownership and the trust counters stay current. Exactly one of
// token and user_id addresses the owner.
type RecordRequest struct {
	Token  string `json:"token,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Kind   string `json:"kind"`
	Body   string `json:"body"`
}

func (r RecordRequest) Validate() error {
	if (r.Token == "") == (r.UserID == "") {
		return dErrors.New(dErrors.CodeBadRequest, "exactly one of token and user_id is required")
	}
	if len(r.Token) > maxSignalLen {
		return dErrors.New(dErrors.CodeBadRequest, "token exceeds maximum length")
	}
	if r.UserID != "" {
		if _, err := uuid.Parse(r.UserID); err != nil {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid user_id %q", r.UserID))
		}
	}
	if !activity.ValidKind(activity.Kind(r.Kind)) {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid kind %q", r.Kind))
	}
	return nil
}

// RegistrationRequest is sent by the registration collaborator once an
// account exists, to trigger the auto-merge.
type RegistrationRequest struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Token       string `json:"token"`
	Fingerprint string `json:"fingerprint"`
}

func (r RegistrationRequest) Validate() error {
	if _, err := uuid.Parse(r.UserID); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid user_id %q", r.UserID))
	}
	if strings.TrimSpace(r.Username) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "username is required")
	}
	return nil
}

// StatusRequest changes an identity's lifecycle status.
type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (r StatusRequest) Validate() error {
	switch identity.Status(r.Status) {
	case identity.StatusActive, identity.StatusRestricted, identity.StatusBlocked:
		return nil
	default:
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid status %q", r.Status))
	}
}

// MergeRequest is the admin-initiated merge. The anonymous side may be
// addressed by id or by fingerprint hash.
type MergeRequest struct {
	AnonymousID string `json:"anonymous_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Username    string `json:"username"`
}

func (r MergeRequest) Validate() error {
	if r.AnonymousID == "" && r.Fingerprint == "" {
		return dErrors.New(dErrors.CodeBadRequest, "anonymous_id or fingerprint is required")
	}
	if r.AnonymousID != "" {
		if _, err := uuid.Parse(r.AnonymousID); err != nil {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid anonymous_id %q", r.AnonymousID))
		}
	}
	if strings.TrimSpace(r.Username) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "username is required")
	}
	return nil
}
