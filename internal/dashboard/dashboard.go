// Package dashboard assembles the dashboard core from configuration: the four
// panels, the scroll debouncer, the update router, the feed translator and the
// metrics collector, all sharing one event bus and one loop.
package dashboard

import (
	"github.com/aridash/ari/internal/config"
	"github.com/aridash/ari/internal/dedup"
	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/feed"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
	"github.com/aridash/ari/internal/metrics"
	"github.com/aridash/ari/internal/router"
	"github.com/aridash/ari/internal/scroll"
	"github.com/aridash/ari/internal/widget"
)

// Dashboard is one running dashboard. Its panels are confined to the loop
// it was built with.
type Dashboard struct {
	Bus        *event.Bus
	Widgets    *widget.Registry
	Scroll     *scroll.Debouncer
	Router     *router.Router
	Translator *feed.Translator
	Metrics    *metrics.Collector

	Chat     *widget.Chat
	Thinking *widget.Thinking
	Tasks    *widget.TaskList
	Notices  *widget.Notices

	exec   loop.Executor
	filter *dedup.Filter
	logger *logging.Logger
}

// New builds a dashboard on exec from cfg.
func New(cfg *config.Config, exec loop.Executor, logger *logging.Logger) (*Dashboard, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	d := &Dashboard{
		Bus:     event.NewBus(event.WithLogger(logger.WithComponent("bus"))),
		Widgets: widget.NewRegistry(),
		Metrics: metrics.New(),
		exec:    exec,
		filter:  dedup.New(dedup.WithTTL(cfg.UI.DedupTTL), dedup.WithMaxRecords(cfg.UI.MaxNotices)),
		logger:  logger,
	}
	d.Metrics.Attach(d.Bus)

	d.Chat = widget.NewChat()
	d.Chat.SetMaxHistory(cfg.UI.ChatHistory)
	d.Thinking = widget.NewThinking(exec,
		widget.WithClearDelay(cfg.UI.ClearDelay),
		widget.WithThinkingBus(d.Bus),
		widget.WithThinkingLogger(logger))
	d.Tasks = widget.NewTaskList(exec, d.Bus, logger)
	d.Notices = widget.NewNotices(d.filter, d.Bus)
	d.Notices.SetMaxNotices(cfg.UI.MaxNotices)

	for _, w := range []widget.Widget{d.Chat, d.Thinking, d.Tasks, d.Notices} {
		if err := d.Widgets.Register(w); err != nil {
			return nil, err
		}
	}

	d.Scroll = scroll.New(exec, d.resolveScroller,
		scroll.WithWindow(cfg.UI.ScrollDebounceWindow),
		scroll.WithBus(d.Bus),
		scroll.WithLogger(logger))

	d.Router = router.New(exec, d.Widgets,
		router.WithCapacity(cfg.UI.QueueCapacity),
		router.WithBatchSize(cfg.UI.BatchSize),
		router.WithYieldInterval(cfg.UI.BatchYieldInterval),
		router.WithScroller(d.Scroll),
		router.WithBus(d.Bus),
		router.WithLogger(logger))

	translator, err := feed.NewTranslator(d.Router, RulesFrom(cfg.Feed), feed.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	d.Translator = translator

	if err := d.registerGauges(); err != nil {
		return nil, err
	}
	return d, nil
}

// RulesFrom converts the feed section of the config into translator rules.
func RulesFrom(fc config.FeedConfig) feed.Rules {
	return feed.Rules{
		MainAgent: fc.MainAgent,
		Planner:   fc.Planner,
		Workers:   fc.Workers,
		Hidden:    fc.Hidden,
	}
}

func (d *Dashboard) resolveScroller(id string) (scroll.Scroller, error) {
	return d.Widgets.Lookup(id)
}

func (d *Dashboard) registerGauges() error {
	return errors.Join(
		d.Metrics.RegisterGauge("router", "queue_length", "Messages waiting in the router queue.",
			func() float64 { return float64(d.Router.Len()) }),
		d.Metrics.RegisterGauge("notices", "identities", "Notice identities remembered by the dedup filter.",
			func() float64 { return float64(d.filter.Len()) }),
		d.Metrics.RegisterGauge("widget", "registered", "Panels currently registered.",
			func() float64 { return float64(d.Widgets.Len()) }),
	)
}

// Reload applies the settings that can change while the dashboard runs: the
// log level and the panel bounds. Queue and timing settings take effect on the
// next start.
func (d *Dashboard) Reload(cfg *config.Config, path string) {
	d.logger.SetLevel(cfg.Logging.Level)
	d.exec.Post(func() {
		d.Chat.SetMaxHistory(cfg.UI.ChatHistory)
		d.Notices.SetMaxNotices(cfg.UI.MaxNotices)
	})
	d.filter.SetMaxRecords(cfg.UI.MaxNotices)
	d.logger.Info("configuration reloaded", "path", path, "level", cfg.Logging.Level)
	d.Bus.Publish(event.NewConfigReloadedEvent(path))
}

// Shutdown stops intake, cancels pending scrolls and removes every panel,
// which cancels the panels' timers. It must run on the loop, or after the
// loop has stopped.
func (d *Dashboard) Shutdown() error {
	d.Router.Close()
	cancelled := d.Scroll.Close()
	err := d.Widgets.RemoveAll()
	d.Metrics.Detach()
	d.logger.Debug("dashboard shut down", "scrolls_cancelled", cancelled)
	return err
}
