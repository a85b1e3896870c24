package flow

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PopulateFromConntrack reads the kernel connection-tracking table,
// extracting the 5-tuple and packet/byte counters for each IPv4 TCP/UDP
// entry and feeding them into Update. Lines carry src=/dst=/sport=/dport=/
// packets=/bytes= tokens; protocol is selected by the presence of a bare
// "tcp" or "udp" token (6 / 17). An unreadable table is returned as an
// error and leaves the existing entries unchanged.
func (t *Table) PopulateFromConntrack(path string, now time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open conntrack table: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, packets, bytes, ok := parseConntrackLine(scanner.Text())
		if !ok {
			continue
		}
		t.Update(key, packets, bytes, now)
	}
	return scanner.Err()
}

func parseConntrackLine(line string) (Key, uint64, uint64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Key{}, 0, 0, false
	}

	var proto uint8
	switch {
	case contains(fields, "tcp"):
		proto = 6
	case contains(fields, "udp"):
		proto = 17
	default:
		return Key{}, 0, 0, false
	}

	var (
		srcIP, dstIP     string
		srcPort, dstPort uint64
		packets, bytes   uint64
		sawSrc, sawDst   bool
	)

	// The first src=/dst=/sport=/dport=/packets=/bytes= occurrence per
	// direction is the original-direction tuple; subsequent occurrences
	// describe the reply direction and are ignored.
	for _, tok := range fields {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "src":
			if !sawSrc {
				if ip, ok := ParseIP(kv[1]); ok {
					srcIP = ip
					sawSrc = true
				}
			}
		case "dst":
			if !sawDst {
				if ip, ok := ParseIP(kv[1]); ok {
					dstIP = ip
					sawDst = true
				}
			}
		case "sport":
			if srcPort == 0 {
				srcPort, _ = strconv.ParseUint(kv[1], 10, 16)
			}
		case "dport":
			if dstPort == 0 {
				dstPort, _ = strconv.ParseUint(kv[1], 10, 16)
			}
		case "packets":
			if packets == 0 {
				packets, _ = strconv.ParseUint(kv[1], 10, 64)
			}
		case "bytes":
			if bytes == 0 {
				bytes, _ = strconv.ParseUint(kv[1], 10, 64)
			}
		}
	}

	if !sawSrc || !sawDst {
		return Key{}, 0, 0, false
	}

	key := Key{
		SrcIP:    srcIP,
		DstIP:    dstIP,
		SrcPort:  uint16(srcPort),
		DstPort:  uint16(dstPort),
		Protocol: proto,
	}
	return key, packets, bytes, true
}

func contains(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}
