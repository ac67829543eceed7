package httpapi

import (
	"sync/atomic"

	"dealscan-engine/internal/config"
	"dealscan-engine/internal/events"
	"dealscan-engine/internal/health"
	"dealscan-engine/internal/store"
)

type Deps struct {
	DB *store.DB

	Hub     *events.Hub
	Tracker *health.Tracker

	// Atomic stores
	CfgVal     *atomic.Value // stores config.Config
	ScanStatus *atomic.Value // stores httpapi.ScanStatus

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Cycle entrypoints (inject for testability)
	RunCycle     func()
	CycleRunning func() bool
}
