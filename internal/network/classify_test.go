package network

import "testing"

func TestIsVPN(t *testing.T) {
	tests := []struct {
		name string
		rep  Reputation
		want bool
	}{
		{"residential isp", Reputation{ISP: "Comcast Cable", Org: "Comcast"}, false},
		{"vpn keyword in isp", Reputation{ISP: "NordVPN AB"}, true},
		{"proxy keyword in org", Reputation{Org: "Anonymous Proxy Networks"}, true},
		{"hosting keyword case-insensitive", Reputation{Org: "AwesomeHOSTING Ltd"}, true},
		{"datacenter keyword", Reputation{ISP: "Some Datacenter Co"}, true},
		{"vps keyword", Reputation{Org: "CheapVPS"}, true},
		{"cloud keyword", Reputation{Org: "Alibaba Cloud"}, true},
		{"known hosting asn", Reputation{ASN: "AS14061", ISP: "DigitalOcean LLC"}, true},
		{"hosting asn lowercase", Reputation{ASN: "as16509"}, true},
		{"empty reputation", Reputation{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVPN(tt.rep); got != tt.want {
				t.Errorf("IsVPN(%+v) = %v, want %v", tt.rep, got, tt.want)
			}
		})
	}
}

func TestIsTor(t *testing.T) {
	tests := []struct {
		name string
		rep  Reputation
		want bool
	}{
		{"tor in org", Reputation{Org: "Tor Exit Node Operator"}, true},
		{"relay keyword", Reputation{ISP: "Foo Relay Services"}, true},
		{"exit keyword", Reputation{Org: "exit-1.example"}, true},
		{"residential", Reputation{ISP: "Deutsche Telekom"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTor(tt.rep); got != tt.want {
				t.Errorf("IsTor(%+v) = %v, want %v", tt.rep, got, tt.want)
			}
		})
	}
}

func TestHashIP(t *testing.T) {
	if HashIP("") != "" {
		t.Fatal("empty IP must hash to empty string")
	}
	if HashIP("203.0.113.7") != HashIP("203.0.113.7") {
		t.Fatal("hash must be deterministic")
	}
	if HashIP("203.0.113.7") == HashIP("203.0.113.8") {
		t.Fatal("different IPs must not collide")
	}
}
