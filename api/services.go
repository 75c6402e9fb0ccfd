package api

import (
	"github.com/aouyang1/inkframe/activation"
	"github.com/aouyang1/inkframe/config"
	"github.com/aouyang1/inkframe/dispatch"
	"github.com/aouyang1/inkframe/imageindex"
	"github.com/aouyang1/inkframe/store"
	"github.com/aouyang1/inkframe/util"
)

// Services are the components shared by the web server, the background managers
// and the command line.
type Services struct {
	Config     *config.Config
	DB         *store.Database
	Cache      *imageindex.Cache
	Selector   *imageindex.Selector
	WakeFiles  *activation.WakeFiles
	Engine     *activation.Engine
	Dispatcher *dispatch.Dispatcher
	Clock      util.Clock
}

// NewServices wires the components for cfg on top of db. A nil clock uses the
// configured timezone.
func NewServices(cfg *config.Config, db *store.Database, clock util.Clock) *Services {
	if clock == nil {
		clock = util.RealClock{Location: cfg.Location()}
	}
	runner := dispatch.ExecRunner{Interpreter: cfg.ScriptInterpreter, Timeout: cfg.ScriptTimeout.Duration}
	return NewServicesWithRunner(cfg, db, clock, runner)
}

// NewServicesWithRunner is NewServices with a custom render runner.
func NewServicesWithRunner(cfg *config.Config, db *store.Database, clock util.Clock, runner dispatch.Runner) *Services {
	indexer := imageindex.NewIndexer(cfg.SharedImagesPath, cfg.LocalImagesPath)
	cache := imageindex.NewCache(cfg.CachePath, cfg.CacheMaxAge.Duration, indexer, clock)
	selector := imageindex.NewSelector(cache, cfg.SharedImagesPath, cfg.LocalImagesPath)
	wakeFiles := activation.NewWakeFiles(cfg.StaticPath)
	dispatcher := dispatch.New(db, selector, runner, dispatch.Options{
		ScriptsDir: cfg.ScriptsPath,
		OutputDir:  cfg.StaticPath,
		Lookahead:  cfg.DispatchLookahead.Duration,
	})

	return &Services{
		Config:     cfg,
		DB:         db,
		Cache:      cache,
		Selector:   selector,
		WakeFiles:  wakeFiles,
		Engine:     activation.NewEngine(db, wakeFiles, cfg.SingleDayPolicy),
		Dispatcher: dispatcher,
		Clock:      clock,
	}
}
