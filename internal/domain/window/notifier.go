package window

import (
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Delegate receives the externally visible window signals. Callbacks run
// on the browser loop and may call back into any window of the same
// browser.
type Delegate interface {
	OnStartLoading(w *Controller, url string)
	OnAddressBarChanged(w *Controller, url string)
	OnLoad(w *Controller)
	OnCrashed(w *Controller)
	OnCreatedWindow(w *Controller, child *Controller)
	// OnBeforeUnload is called when the page agreed to unload. Returning
	// false keeps the window open.
	OnBeforeUnload(w *Controller, proceed bool) bool
	OnCancelUnload(w *Controller)
}

// NopDelegate ignores every signal. Embed it to implement a subset.
type NopDelegate struct{}

func (NopDelegate) OnStartLoading(*Controller, string)              {}
func (NopDelegate) OnAddressBarChanged(*Controller, string)         {}
func (NopDelegate) OnLoad(*Controller)                              {}
func (NopDelegate) OnCrashed(*Controller)                           {}
func (NopDelegate) OnCreatedWindow(*Controller, *Controller)        {}
func (NopDelegate) OnBeforeUnload(_ *Controller, proceed bool) bool { return proceed }
func (NopDelegate) OnCancelUnload(*Controller)                      {}

// MultiDelegate fans every signal out in order. OnBeforeUnload reaches all
// delegates and proceeds only if all of them agree.
type MultiDelegate []Delegate

func (m MultiDelegate) OnStartLoading(w *Controller, url string) {
	for _, d := range m {
		d.OnStartLoading(w, url)
	}
}

func (m MultiDelegate) OnAddressBarChanged(w *Controller, url string) {
	for _, d := range m {
		d.OnAddressBarChanged(w, url)
	}
}

func (m MultiDelegate) OnLoad(w *Controller) {
	for _, d := range m {
		d.OnLoad(w)
	}
}

func (m MultiDelegate) OnCrashed(w *Controller) {
	for _, d := range m {
		d.OnCrashed(w)
	}
}

func (m MultiDelegate) OnCreatedWindow(w *Controller, child *Controller) {
	for _, d := range m {
		d.OnCreatedWindow(w, child)
	}
}

func (m MultiDelegate) OnBeforeUnload(w *Controller, proceed bool) bool {
	result := proceed
	for _, d := range m {
		if !d.OnBeforeUnload(w, proceed) {
			result = false
		}
	}
	return result
}

func (m MultiDelegate) OnCancelUnload(w *Controller) {
	for _, d := range m {
		d.OnCancelUnload(w)
	}
}

// Notification kinds, used as metric labels and stream frame types.
const (
	NotifyStartLoading      = "start_loading"
	NotifyAddressBarChanged = "address_bar_changed"
	NotifyLoad              = "load"
	NotifyCrashed           = "crashed"
	NotifyCreatedWindow     = "created_window"
	NotifyBeforeUnload      = "before_unload"
	NotifyCancelUnload      = "cancel_unload"
)

// Notifier forwards signals to a delegate that may be absent. Without a
// delegate every signal is dropped.
type Notifier struct {
	delegate Delegate
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewNotifier creates a notifier; d may be nil.
func NewNotifier(d Delegate, metrics *monitoring.Metrics, logger *zap.Logger) *Notifier {
	return &Notifier{delegate: d, metrics: metrics, logger: logging.OrNop(logger)}
}

func (n *Notifier) SetDelegate(d Delegate) { n.delegate = d }
func (n *Notifier) Delegate() Delegate     { return n.delegate }

func (n *Notifier) target(kind string) Delegate {
	if n.delegate == nil {
		return nil
	}
	n.metrics.RecordNotification(kind)
	n.logger.Debug("notify", zap.String("kind", kind))
	return n.delegate
}

func (n *Notifier) StartLoading(w *Controller, url string) {
	if d := n.target(NotifyStartLoading); d != nil {
		d.OnStartLoading(w, url)
	}
}

func (n *Notifier) AddressBarChanged(w *Controller, url string) {
	if d := n.target(NotifyAddressBarChanged); d != nil {
		d.OnAddressBarChanged(w, url)
	}
}

func (n *Notifier) Load(w *Controller) {
	if d := n.target(NotifyLoad); d != nil {
		d.OnLoad(w)
	}
}

func (n *Notifier) Crashed(w *Controller) {
	if d := n.target(NotifyCrashed); d != nil {
		d.OnCrashed(w)
	}
}

func (n *Notifier) CreatedWindow(w *Controller, child *Controller) {
	if d := n.target(NotifyCreatedWindow); d != nil {
		d.OnCreatedWindow(w, child)
	}
}

// BeforeUnload returns the delegate's answer, or proceed without one.
func (n *Notifier) BeforeUnload(w *Controller, proceed bool) bool {
	if d := n.target(NotifyBeforeUnload); d != nil {
		return d.OnBeforeUnload(w, proceed)
	}
	return proceed
}

func (n *Notifier) CancelUnload(w *Controller) {
	if d := n.target(NotifyCancelUnload); d != nil {
		d.OnCancelUnload(w)
	}
}
