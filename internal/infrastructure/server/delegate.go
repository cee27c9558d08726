package server

import (
	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"go.uber.org/zap"
)

// logDelegate writes every window signal to the log.
type logDelegate struct {
	logger *zap.Logger
}

func newLogDelegate(logger *zap.Logger) *logDelegate {
	return &logDelegate{logger: logger}
}

func (d *logDelegate) with(w *window.Controller) *zap.Logger {
	return d.logger.With(zap.String("window_id", w.ID().String()))
}

func (d *logDelegate) OnStartLoading(w *window.Controller, url string) {
	d.with(w).Debug("start loading", zap.String("url", url))
}

func (d *logDelegate) OnAddressBarChanged(w *window.Controller, url string) {
	d.with(w).Debug("address bar changed", zap.String("url", url))
}

func (d *logDelegate) OnLoad(w *window.Controller) {
	d.with(w).Info("page loaded",
		zap.String("url", w.CurrentURL()),
		zap.String("title", w.CurrentTitle()),
	)
}

func (d *logDelegate) OnCrashed(w *window.Controller) {
	d.with(w).Warn("renderer crashed", zap.String("url", w.CurrentURL()))
}

func (d *logDelegate) OnCreatedWindow(w *window.Controller, child *window.Controller) {
	d.with(w).Info("window opened", zap.String("child_id", child.ID().String()))
}

func (d *logDelegate) OnBeforeUnload(w *window.Controller, proceed bool) bool {
	d.with(w).Debug("before unload", zap.Bool("proceed", proceed))
	return proceed
}

func (d *logDelegate) OnCancelUnload(w *window.Controller) {
	d.with(w).Debug("unload cancelled")
}
