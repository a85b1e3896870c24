package config

import (
	"context"
	"strings"
	"time"

	"github.com/mycoflow/mycoflow/internal/runner"
)

// UCIReader satisfies UCISource by shelling out to `uci -q get`, following
// myco_config.c's exact lookup order: the named section first
// (mycoflow.mycoflow.<option>), falling back to the anonymous first
// section (mycoflow.@mycoflow[0].<option>) if the named one is absent.
type UCIReader struct {
	run     *runner.Runner
	timeout time.Duration
}

// NewUCIReader returns a UCIReader using the hardened tc/ip/uci runner.
func NewUCIReader() *UCIReader {
	return &UCIReader{run: runner.New(), timeout: 2 * time.Second}
}

// Get looks up option via uci, trying the named section then the
// anonymous-section fallback. It reports ok=false if uci is unavailable or
// the option is unset in both locations.
func (u *UCIReader) Get(option string) (string, bool) {
	if v, ok := u.query("mycoflow.mycoflow." + option); ok {
		return v, true
	}
	return u.query("mycoflow.@mycoflow[0]." + option)
}

func (u *UCIReader) query(path string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()

	out, err := u.run.Run(ctx, "uci", []string{"-q", "get", path})
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(out.Stdout)
	if v == "" {
		return "", false
	}
	return v, true
}
