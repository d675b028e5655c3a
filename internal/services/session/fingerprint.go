package session

import (
	"encoding/hex"
	"net/netip"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies the client a session was issued to: its user
// agent and network (/24 for IPv4, /64 for IPv6). Roaming inside the same
// network keeps the session; anything else invalidates it.
func Fingerprint(userAgent, remoteAddr string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(userAgent))
	h.Write([]byte{0})
	h.Write([]byte(ipClass(remoteAddr)))
	return hex.EncodeToString(h.Sum(nil))
}

func ipClass(remoteAddr string) string {
	addr, err := netip.ParseAddr(remoteAddr)
	if err != nil {
		ap, perr := netip.ParseAddrPort(remoteAddr)
		if perr != nil {
			return remoteAddr
		}
		addr = ap.Addr()
	}
	addr = addr.Unmap().WithZone("")

	bits := 64
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return addr.String()
	}
	return prefix.String()
}
