package sense

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ifaceCounters holds the cumulative byte/packet counters for one
// interface, as read from /proc/net/dev.
type ifaceCounters struct {
	rxBytes, txBytes     int64
	rxPackets, txPackets int64
}

// readIfaceCounters parses /proc/net/dev and returns the counters for the
// named interface. A `:`-separated line lists, 1-based, RX bytes (field 1),
// RX packets (field 2), TX bytes (field 9), TX packets (field 10) after the
// interface name.
func readIfaceCounters(procRoot, iface string) (ifaceCounters, bool) {
	f, err := os.Open(filepath.Join(procRoot, "net", "dev"))
	if err != nil {
		return ifaceCounters{}, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= 2 {
			continue
		}
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name != iface {
			continue
		}
		fields := strings.Fields(parts[1])
		if len(fields) < 10 {
			return ifaceCounters{}, false
		}
		rxBytes, _ := strconv.ParseInt(fields[0], 10, 64)
		rxPackets, _ := strconv.ParseInt(fields[1], 10, 64)
		txBytes, _ := strconv.ParseInt(fields[8], 10, 64)
		txPackets, _ := strconv.ParseInt(fields[9], 10, 64)
		return ifaceCounters{
			rxBytes:   rxBytes,
			txBytes:   txBytes,
			rxPackets: rxPackets,
			txPackets: txPackets,
		}, true
	}
	return ifaceCounters{}, false
}
