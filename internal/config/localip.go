package config

import (
	"net"
	"time"
)

// DetectLocalIP returns this machine's LAN address. Private-range
// interface addresses win; a UDP dial trick is the fallback (no packet
// is sent). Returns loopback when nothing better exists.
func DetectLocalIP() string {
	if ip := privateInterfaceIP(); ip != "" {
		return ip
	}
	if ip := outboundIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

func privateInterfaceIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip != nil && ip.IsPrivate() {
				return ip.String()
			}
		}
	}
	return ""
}

func outboundIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 100*time.Millisecond)
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
