package healthcheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/pkg/cache"
	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/lva"
)

// Status values reported for each component.
const (
	StatusOK       = "ok"
	StatusMissing  = "missing"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

// ComponentStatus is the health of one component.
type ComponentStatus struct {
	Status string
	Detail string
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string
	Parser         ComponentStatus
	Cache          ComponentStatus
}

// Healthy reports whether no component is in error.
func (r *HealthCheckResult) Healthy() bool {
	return r.Parser.Status != StatusError && r.Cache.Status != StatusError
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use.
func Check(c *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
		Parser:         checkParser(),
		Cache:          checkCache(c),
	}, nil
}

func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}
	home, err := os.UserHomeDir()
	if err == nil {
		abs, absErr := filepath.Abs(path)
		if absErr == nil && strings.HasPrefix(abs, filepath.Join(home, ".lva")+string(filepath.Separator)) {
			return "global"
		}
	}
	return "project"
}

const sampleSource = `
class Sample {
    int M(bool p, int x) {
        if (p) return 0;
        return x;
    }
}`

// checkParser lowers and solves a known method end to end.
func checkParser() ComponentStatus {
	g, err := cfg.ExtractCSharpCFGFromBytes([]byte(sampleSource), "M")
	if err != nil {
		return ComponentStatus{Status: StatusError, Error: err.Error()}
	}
	r := lva.Solve(g)
	var live []string
	for _, s := range r.LiveIn(g.Entry()) {
		live = append(live, s.Name)
	}
	if strings.Join(live, ",") != "p,x" {
		return ComponentStatus{
			Status: StatusError,
			Error:  fmt.Sprintf("sample method live-in is [%s], want [p,x]", strings.Join(live, ", ")),
		}
	}
	return ComponentStatus{
		Status: StatusOK,
		Detail: fmt.Sprintf("C# front end ok (%d blocks, %d iterations)", len(g.Blocks), r.Iterations),
	}
}

func checkCache(c *config.Config) ComponentStatus {
	if !c.CacheEnabled {
		return ComponentStatus{Status: StatusDisabled}
	}
	if _, err := os.Stat(c.CachePath); errors.Is(err, os.ErrNotExist) {
		return ComponentStatus{Status: StatusMissing, Detail: c.CachePath + " will be created on first save"}
	}

	store := cache.NewStore(cache.Options{}, c.CachePath)
	if err := store.Load(); err != nil {
		status := ComponentStatus{Status: StatusError, Error: err.Error()}
		if errors.Is(err, cache.ErrIncompatibleFormat) {
			status.Detail = "run `lva cache clear` to discard it"
		}
		return status
	}
	stats := store.Cache().Stats()
	return ComponentStatus{
		Status: StatusOK,
		Detail: fmt.Sprintf("%s (%d entries, %d bytes)", c.CachePath, stats.Length, stats.CurrentBytes),
	}
}
