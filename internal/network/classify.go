package network

import "strings"

// Keyword tables for provider classification, matched case-insensitively
// against the concatenation of ISP, organization, and ASN fields.
var (
	vpnKeywords = []string{"vpn", "proxy", "hosting", "datacenter", "cloud", "vps", "server"}
	torKeywords = []string{"tor", "exit", "relay"}

	// hostingASNs lists ASNs that are hosting/VPN providers regardless of
	// how their org strings read.
	hostingASNs = map[string]bool{
		"AS9009":   true, // M247
		"AS14061":  true, // DigitalOcean
		"AS16276":  true, // OVH
		"AS16509":  true, // Amazon
		"AS20473":  true, // Vultr
		"AS24940":  true, // Hetzner
		"AS63949":  true, // Linode
		"AS396982": true, // Google Cloud
	}
)

// IsVPN reports whether the reputation looks like a VPN, proxy, or hosting
// provider rather than a residential connection.
func IsVPN(rep Reputation) bool {
	if hostingASNs[strings.ToUpper(strings.TrimSpace(rep.ASN))] {
		return true
	}
	return matchAny(rep, vpnKeywords)
}

// IsTor reports whether the reputation looks like a Tor exit or relay.
func IsTor(rep Reputation) bool {
	return matchAny(rep, torKeywords)
}

func matchAny(rep Reputation, keywords []string) bool {
	haystack := strings.ToLower(rep.ISP + " " + rep.Org + " " + rep.ASN)
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
