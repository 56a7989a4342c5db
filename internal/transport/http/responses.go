package httptransport

import (
	"github.com/google/uuid"

	"termtrust/internal/identity"
	"termtrust/internal/identity/resolver"
)

// Geo is the only network detail a client ever sees. Raw IPs, ISP names, and
// VPN/Tor flags stay server-side.
type Geo struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// InitResponse is the public-safe resolution payload.
type InitResponse struct {
	IdentityID uuid.UUID          `json:"identity_id"`
	Kind       identity.Kind      `json:"kind"`
	MatchType  identity.MatchType `json:"match_type"`
	IsNew      bool               `json:"is_new"`
	Token      string             `json:"token,omitempty"`
	TrustScore *int               `json:"trust_score,omitempty"`
	Geo        Geo                `json:"geo"`
}

// RecordResponse acknowledges a stored activity record.
type RecordResponse struct {
	ID uuid.UUID `json:"id"`
}

func initResponse(res *resolver.Resolution) InitResponse {
	out := InitResponse{
		Kind:      res.Kind,
		MatchType: res.MatchType,
		IsNew:     res.IsNew,
		Geo:       Geo{Country: res.Geo.Country, City: res.Geo.City},
	}
	if res.Anon != nil {
		out.IdentityID = res.Anon.ID
		out.Token = res.Anon.Token
		score := res.Anon.TrustScore
		out.TrustScore = &score
	}
	if res.User != nil {
		out.IdentityID = res.User.ID
	}
	return out
}
