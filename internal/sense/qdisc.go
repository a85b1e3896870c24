package sense

import (
	"encoding/binary"
	"fmt"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
)

// Legacy rtnetlink constants for qdisc statistics. These mirror
// linux/rtnetlink.h / linux/gen_stats.h; the kernel's routing netlink
// socket is addressed directly rather than through a higher-level
// abstraction so the TCA_STATS attribute can be walked as the raw,
// length-prefixed record layout the kernel emits.
const (
	rtmGetQdisc = 38 // RTM_GETQDISC
	rtmNewQdisc = 36 // RTM_NEWQDISC

	tcaUnspec = 0
	tcaKind   = 1
	tcaStats  = 3 // legacy struct tc_stats
)

// qdiscTotals is the sum of backlog/drops/overlimits across every qdisc
// attached to one interface.
type qdiscTotals struct {
	Backlog    uint32
	Drops      uint32
	Overlimits uint32
}

// qdiscStatsReader issues an RTM_GETQDISC dump over a routing netlink
// socket and sums the legacy TCA_STATS attribute across every returned
// qdisc message. Unknown attributes and unknown qdisc kinds contribute
// zero, per the design's "ignore unknown attributes" note.
type qdiscStatsReader struct {
	conn *netlink.Conn
}

func newQdiscStatsReader() (*qdiscStatsReader, error) {
	conn, err := netlink.Dial(0, nil) // NETLINK_ROUTE
	if err != nil {
		return nil, fmt.Errorf("dial routing netlink: %w", err)
	}
	return &qdiscStatsReader{conn: conn}, nil
}

func (r *qdiscStatsReader) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Sum dumps every qdisc attached to ifindex and sums their stats.
func (r *qdiscStatsReader) Sum(ifindex int) (qdiscTotals, error) {
	var totals qdiscTotals
	if r.conn == nil {
		return totals, fmt.Errorf("qdisc reader not initialized")
	}

	req := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(rtmGetQdisc),
			Flags: netlink.Request | netlink.Dump,
		},
		Data: tcmsgPayload(ifindex),
	}

	msgs, err := r.conn.Execute(req)
	if err != nil {
		return totals, fmt.Errorf("dump qdiscs: %w", err)
	}

	for _, m := range msgs {
		if netlink.HeaderType(rtmNewQdisc) != m.Header.Type {
			continue
		}
		stats, ok := parseTCAStats(m.Data)
		if !ok {
			continue
		}
		totals.Backlog += stats.Backlog
		totals.Drops += stats.Drops
		totals.Overlimits += stats.Overlimits
	}
	return totals, nil
}

// tcmsgPayload builds the fixed-size struct tcmsg header (family, pad, pad,
// ifindex, handle, parent, info) used by RTM_GETQDISC requests, addressing
// a single interface by index.
func tcmsgPayload(ifindex int) []byte {
	buf := make([]byte, 20)
	buf[0] = 0 // AF_UNSPEC
	binary.LittleEndian.PutUint32(buf[4:8], uint32(ifindex))
	return buf
}

// parseTCAStats walks the attribute records following the struct tcmsg
// header (offset 20) looking for TCA_STATS. Netlink attributes are
// length-prefixed records: a uint16 length, a uint16 type, then the
// payload, padded to a 4-byte boundary.
func parseTCAStats(data []byte) (qdiscTotals, bool) {
	var totals qdiscTotals
	if len(data) < 20 {
		return totals, false
	}
	attrs := data[20:]
	found := false
	for len(attrs) >= 4 {
		alen := binary.LittleEndian.Uint16(attrs[0:2])
		atype := binary.LittleEndian.Uint16(attrs[2:4]) &^ 0x8000 // strip NLA_F_NESTED
		if alen < 4 || int(alen) > len(attrs) {
			break
		}
		payload := attrs[4:alen]

		if atype == tcaStats && len(payload) >= 36 {
			// struct tc_stats: bytes(u64)@0 packets(u32)@8 drops(u32)@12
			// overlimits(u32)@16 bps(u32)@20 pps(u32)@24 qlen(u32)@28
			// backlog(u32)@32
			totals.Drops = binary.LittleEndian.Uint32(payload[12:16])
			totals.Overlimits = binary.LittleEndian.Uint32(payload[16:20])
			totals.Backlog = binary.LittleEndian.Uint32(payload[32:36])
			found = true
		}

		advance := int(alen+3) &^ 3 // round up to 4-byte alignment
		if advance <= 0 || advance > len(attrs) {
			break
		}
		attrs = attrs[advance:]
	}
	return totals, found
}

// resolveIfindex looks up an interface's kernel index by name over a
// short-lived rtnetlink connection.
func resolveIfindex(name string) (int, error) {
	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return 0, fmt.Errorf("dial rtnetlink: %w", err)
	}
	defer conn.Close()

	links, err := conn.Link.List()
	if err != nil {
		return 0, fmt.Errorf("list links: %w", err)
	}
	for _, l := range links {
		if l.Attributes != nil && l.Attributes.Name == name {
			return int(l.Index), nil
		}
	}
	return 0, fmt.Errorf("interface %q not found", name)
}
