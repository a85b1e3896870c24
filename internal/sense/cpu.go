package sense

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// cpuTimes holds jiffies for each aggregate CPU state, as read from the
// first line of /proc/stat.
type cpuTimes struct {
	user, nice, system, idle, iowait, irq, softirq, steal uint64
}

func (t cpuTimes) total() uint64 {
	return t.user + t.nice + t.system + t.idle + t.iowait + t.irq + t.softirq + t.steal
}

func (t cpuTimes) busy() uint64 {
	return t.total() - t.idle
}

// readCPUTimes parses the aggregate "cpu" line of /proc/stat.
func readCPUTimes(procRoot string) (cpuTimes, bool) {
	f, err := os.Open(filepath.Join(procRoot, "stat"))
	if err != nil {
		return cpuTimes{}, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 9 || fields[0] != "cpu" {
			continue
		}
		parse := func(idx int) uint64 {
			v, _ := strconv.ParseUint(fields[idx], 10, 64)
			return v
		}
		return cpuTimes{
			user:    parse(1),
			nice:    parse(2),
			system:  parse(3),
			idle:    parse(4),
			iowait:  parse(5),
			irq:     parse(6),
			softirq: parse(7),
			steal:   parse(8),
		}, true
	}
	return cpuTimes{}, false
}

// cpuPctDelta computes (1 - idle_delta/total_delta) * 100 between two
// readings, i.e. the busy share as a percentage.
func cpuPctDelta(before, after cpuTimes) float64 {
	totalDelta := float64(after.total() - before.total())
	if totalDelta <= 0 {
		return 0
	}
	idleDelta := float64(after.idle - before.idle)
	return (1 - idleDelta/totalDelta) * 100
}
