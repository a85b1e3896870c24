package sense

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProcTree(t *testing.T, dir string, rxBytes, rxPkts, txBytes, txPkts int, cpuUser, cpuIdle int) {
	t.Helper()
	netDir := filepath.Join(dir, "net")
	if err := os.MkdirAll(netDir, 0755); err != nil {
		t.Fatal(err)
	}
	dev := "Inter-|   Receive                                                |  Transmit\n" +
		" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n"
	dev += devLine("eth0", rxBytes, rxPkts, txBytes, txPkts)
	if err := os.WriteFile(filepath.Join(netDir, "dev"), []byte(dev), 0644); err != nil {
		t.Fatal(err)
	}
	stat := statLine(cpuUser, cpuIdle)
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0644); err != nil {
		t.Fatal(err)
	}
}

func devLine(iface string, rxBytes, rxPkts, txBytes, txPkts int) string {
	return iface + ":  " + itoa(rxBytes) + " " + itoa(rxPkts) + " 0 0 0 0 0 0  " + itoa(txBytes) + " " + itoa(txPkts) + " 0 0 0 0 0 0\n"
}

func statLine(user, idle int) string {
	return "cpu  " + itoa(user) + " 0 0 " + itoa(idle) + " 0 0 0 0 0 0\n"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestSamplerFirstTickPublishesZeroRates(t *testing.T) {
	dir := t.TempDir()
	writeProcTree(t, dir, 1000, 10, 500, 5, 100, 900)

	s := New(Options{ProcRoot: dir})
	m := s.Sample("eth0", "", 1.0, true)

	if m.RxBps != 0 || m.TxBps != 0 {
		t.Errorf("expected zero rates on first tick, got Rx=%v Tx=%v", m.RxBps, m.TxBps)
	}
	if m.CPUPct != 0 {
		t.Errorf("expected zero CPUPct on first tick, got %v", m.CPUPct)
	}
}

func TestSamplerSecondTickComputesRates(t *testing.T) {
	dir := t.TempDir()
	writeProcTree(t, dir, 1000, 10, 500, 5, 100, 900)
	s := New(Options{ProcRoot: dir})
	s.Sample("eth0", "", 1.0, true)

	writeProcTree(t, dir, 2000, 15, 1500, 10, 200, 1800)
	m := s.Sample("eth0", "", 1.0, true)

	// delta rxBytes=1000 over 1s -> 8000 bits/s
	if m.RxBps != 8000 {
		t.Errorf("RxBps = %v, want 8000", m.RxBps)
	}
	// delta txBytes=1000 over 1s -> 8000 bits/s
	if m.TxBps != 8000 {
		t.Errorf("TxBps = %v, want 8000", m.TxBps)
	}
	// delta packets = (15-10)+(10-5) = 10, delta bytes = 1000+1000=2000
	if !floatEq(m.AvgPktSize, 200, 0.01) {
		t.Errorf("AvgPktSize = %v, want 200", m.AvgPktSize)
	}
}

func TestSamplerDummyProbePopulatesLatency(t *testing.T) {
	dir := t.TempDir()
	writeProcTree(t, dir, 0, 0, 0, 0, 0, 100)
	s := New(Options{ProcRoot: dir})
	m := s.Sample("eth0", "", 1.0, true)

	if m.RTTMs < 10 {
		t.Errorf("expected synthetic RTT >= 10ms, got %v", m.RTTMs)
	}
}

func TestSamplerDegradesGracefullyOnMissingProc(t *testing.T) {
	s := New(Options{ProcRoot: "/nonexistent"})
	m := s.Sample("eth0", "", 1.0, true)

	if m.RxBps != 0 || m.CPUPct != 0 {
		t.Errorf("expected zero fields when /proc is unavailable")
	}
}
