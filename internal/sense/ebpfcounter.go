package sense

import (
	"fmt"
	"log"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// counterMapName is the single-entry array map the compiled object exports,
// keyed by 0, holding a {u64 packets; u64 bytes} struct.
const counterMapName = "counters"

// packetCounter wraps the loaded eBPF collection backing the kernel packet
// counter program described by ebpf_obj. It mirrors the teacher's
// internal/ebpf Loader/LoadedProgram shape, generalized from "attach a
// kprobe and stream events" to "attach a TC classifier and read one
// cumulative counter".
type packetCounter struct {
	coll *ebpf.Collection
	link link.Link
	m    *ebpf.Map
}

// loadPacketCounter loads objPath and, if attach is true, attaches its
// classifier program to iface in the given direction ("ingress" or
// "egress"). When attach is false the program is assumed already attached
// (e.g. by an external tc filter) and only the map is opened for reading.
func loadPacketCounter(objPath, iface, direction string, attach bool) (*packetCounter, error) {
	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		return nil, fmt.Errorf("load collection spec %q: %w", objPath, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("instantiate collection: %w", err)
	}

	m, ok := coll.Maps[counterMapName]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("map %q not found in %q", counterMapName, objPath)
	}

	pc := &packetCounter{coll: coll, m: m}

	if attach {
		prog := firstProgram(coll)
		if prog == nil {
			coll.Close()
			return nil, fmt.Errorf("no programs found in %q", objPath)
		}
		ifindex, err := resolveIfindex(iface)
		if err != nil {
			coll.Close()
			return nil, err
		}
		l, err := link.AttachTCX(link.TCXOptions{
			Program:   prog,
			Attach:    tcxAttachType(direction),
			Interface: ifindex,
		})
		if err != nil {
			coll.Close()
			return nil, fmt.Errorf("attach tcx %s on %s: %w", direction, iface, err)
		}
		pc.link = l
		log.Printf("[sense] attached packet counter to %s (%s)", iface, direction)
	}

	return pc, nil
}

func firstProgram(coll *ebpf.Collection) *ebpf.Program {
	for _, p := range coll.Programs {
		return p
	}
	return nil
}

func tcxAttachType(direction string) ebpf.AttachType {
	if direction == "egress" {
		return ebpf.AttachTCXEgress
	}
	return ebpf.AttachTCXIngress
}

// Read returns the cumulative (packets, bytes) counter at key 0.
func (pc *packetCounter) Read() (pkts, bytes uint64, err error) {
	var v struct {
		Packets uint64
		Bytes   uint64
	}
	if err := pc.m.Lookup(uint32(0), &v); err != nil {
		return 0, 0, fmt.Errorf("lookup counter: %w", err)
	}
	return v.Packets, v.Bytes, nil
}

func (pc *packetCounter) Close() error {
	if pc.link != nil {
		pc.link.Close()
	}
	if pc.coll != nil {
		pc.coll.Close()
	}
	return nil
}
