package network

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// OwnerKind tells which identity family an observation belongs to.
type OwnerKind string

const (
	OwnerAnonymous  OwnerKind = "anonymous"
	OwnerRegistered OwnerKind = "registered"
)

// Observation is one (identity, network context) pairing. The real IP is
// stored server-side only and excluded from every serialization; clients and
// operator views see the hash and derived geography.
type Observation struct {
	ID        uuid.UUID `json:"id"`
	OwnerKind OwnerKind `json:"owner_kind"`
	OwnerID   uuid.UUID `json:"owner_id"`
	RealIP    string    `json:"-"`
	IPHash    string    `json:"ip_hash"`
	Country   string    `json:"country"`
	City      string    `json:"city"`
	ISP       string    `json:"isp"`
	Org       string    `json:"org"`
	ASN       string    `json:"asn"`
	VPN       bool      `json:"vpn"`
	Tor       bool      `json:"tor"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// HashIP derives the correlation key stored alongside the real IP. Same IP,
// same hash; correlation queries never need to compare raw addresses.
func HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// Reputation is the best-effort result of a geo/ISP/ASN lookup.
type Reputation struct {
	Country string `json:"country"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
	Org     string `json:"org"`
	ASN     string `json:"asn"`
}

// Unknown is the degraded fallback when the reputation collaborator fails or
// times out; resolution proceeds with it rather than erroring.
func Unknown() Reputation {
	return Reputation{Country: "Unknown", City: "Unknown"}
}
