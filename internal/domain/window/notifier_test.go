package window

import (
	"testing"

	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockDelegate struct {
	mock.Mock
}

func (m *mockDelegate) OnStartLoading(w *Controller, url string)      { m.Called(w, url) }
func (m *mockDelegate) OnAddressBarChanged(w *Controller, url string) { m.Called(w, url) }
func (m *mockDelegate) OnLoad(w *Controller)                          { m.Called(w) }
func (m *mockDelegate) OnCrashed(w *Controller)                       { m.Called(w) }
func (m *mockDelegate) OnCreatedWindow(w *Controller, child *Controller) {
	m.Called(w, child)
}
func (m *mockDelegate) OnBeforeUnload(w *Controller, proceed bool) bool {
	return m.Called(w, proceed).Bool(0)
}
func (m *mockDelegate) OnCancelUnload(w *Controller) { m.Called(w) }

func TestNotifierWithoutDelegate(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	w := &Controller{}

	assert.NotPanics(t, func() {
		n.StartLoading(w, "http://a/")
		n.AddressBarChanged(w, "http://a/")
		n.Load(w)
		n.Crashed(w)
		n.CreatedWindow(w, w)
		n.CancelUnload(w)
	})
	assert.True(t, n.BeforeUnload(w, true))
	assert.False(t, n.BeforeUnload(w, false))
}

func TestNotifierForwardsAndCounts(t *testing.T) {
	metrics := monitoring.NewMetrics()
	d := &mockDelegate{}
	w := &Controller{}

	d.On("OnStartLoading", w, "http://a/").Once()
	d.On("OnAddressBarChanged", w, "http://a/").Once()
	d.On("OnLoad", w).Once()
	d.On("OnBeforeUnload", w, true).Return(false).Once()

	n := NewNotifier(d, metrics, nil)
	n.StartLoading(w, "http://a/")
	n.AddressBarChanged(w, "http://a/")
	n.Load(w)
	assert.False(t, n.BeforeUnload(w, true))

	d.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues(NotifyLoad)))

	n.SetDelegate(nil)
	n.Load(w)
	d.AssertNumberOfCalls(t, "OnLoad", 1)
}

func TestMultiDelegate(t *testing.T) {
	first, second := &mockDelegate{}, &mockDelegate{}
	w := &Controller{}

	for _, d := range []*mockDelegate{first, second} {
		d.On("OnCrashed", w).Once()
		d.On("OnCancelUnload", w).Once()
	}
	first.On("OnBeforeUnload", w, true).Return(false).Once()
	second.On("OnBeforeUnload", w, true).Return(true).Once()

	multi := MultiDelegate{first, second}
	multi.OnCrashed(w)
	multi.OnCancelUnload(w)
	assert.False(t, multi.OnBeforeUnload(w, true), "one veto keeps the window")

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestNopDelegate(t *testing.T) {
	var d Delegate = NopDelegate{}
	assert.True(t, d.OnBeforeUnload(nil, true))
	assert.False(t, d.OnBeforeUnload(nil, false))
	assert.True(t, MultiDelegate{}.OnBeforeUnload(nil, true))
}
