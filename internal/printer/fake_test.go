package printer

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type fakeChar struct {
	uuid  string
	props Properties

	mu sync.Mutex
	// fail решает, завершится ли запись ошибкой.
	fail     func(data []byte) error
	written  [][]byte
	attempts [][]byte
	modes    []string
}

func (c *fakeChar) UUID() string           { return c.uuid }
func (c *fakeChar) Properties() Properties { return c.props }

func (c *fakeChar) WriteWithResponse(ctx context.Context, data []byte) error {
	return c.record("response", data)
}

func (c *fakeChar) WriteWithoutResponse(ctx context.Context, data []byte) error {
	return c.record("no-response", data)
}

func (c *fakeChar) record(mode string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), data...)
	c.attempts = append(c.attempts, cp)
	c.modes = append(c.modes, mode)
	if c.fail != nil {
		if err := c.fail(cp); err != nil {
			return err
		}
	}
	c.written = append(c.written, cp)
	return nil
}

func (c *fakeChar) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeChar) Attempts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.attempts...)
}

type fakeService struct {
	uuid  string
	chars []Characteristic
	err   error
}

func (s *fakeService) UUID() string { return s.uuid }

func (s *fakeService) Characteristics(ctx context.Context) ([]Characteristic, error) {
	return s.chars, s.err
}

type fakeLink struct {
	mu          sync.Mutex
	services    []Service
	servicesErr error
	connected   bool
	disconnects int
	listeners   map[int]DisconnectListener
	nextID      int
	// dropOnSubscribe сообщает о разрыве прямо из Subscribe.
	dropOnSubscribe bool
}

func newFakeLink(services ...Service) *fakeLink {
	return &fakeLink{services: services, connected: true, listeners: map[int]DisconnectListener{}}
}

func (l *fakeLink) Services(ctx context.Context) ([]Service, error) {
	return l.services, l.servicesErr
}

func (l *fakeLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	l.disconnects++
	return nil
}

func (l *fakeLink) Subscribe(dl DisconnectListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = dl
	unsubscribe := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
	if l.dropOnSubscribe {
		l.connected = false
		l.mu.Unlock()
		dl.OnDisconnect()
		l.mu.Lock()
	}
	return unsubscribe
}

func (l *fakeLink) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

// Drop имитирует разрыв со стороны устройства.
func (l *fakeLink) Drop() {
	l.mu.Lock()
	l.connected = false
	listeners := make([]DisconnectListener, 0, len(l.listeners))
	for _, dl := range l.listeners {
		listeners = append(listeners, dl)
	}
	l.mu.Unlock()
	for _, dl := range listeners {
		dl.OnDisconnect()
	}
}

type fakeDevice struct {
	id         string
	name       string
	advertised []string
	link       *fakeLink
	connectErr error

	// entered закрывается при входе в Connect, gate держит вызов без учёта ctx.
	entered chan struct{}
	gate    chan struct{}
}

func (d *fakeDevice) ID() string   { return d.id }
func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) Connect(ctx context.Context) (Link, error) {
	if d.gate != nil {
		close(d.entered)
		<-d.gate
	}
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.link.mu.Lock()
	d.link.connected = true
	d.link.mu.Unlock()
	return d.link, nil
}

type fakeAdapter struct {
	availableErr error
	devices      []*fakeDevice

	// entered закрывается при первом входе в RequestDevice, release держит вызов.
	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	requests []DeviceRequest
}

func (a *fakeAdapter) Available() error { return a.availableErr }

func (a *fakeAdapter) RequestDevice(ctx context.Context, req DeviceRequest) (Device, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	first := len(a.requests) == 1
	a.mu.Unlock()

	if a.release != nil {
		if first && a.entered != nil {
			close(a.entered)
		}
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for _, d := range a.devices {
		if req.Matches(d.advertised) {
			return d, nil
		}
	}
	return nil, domain.ErrDeviceNotFound
}

func (a *fakeAdapter) Requests() []DeviceRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]DeviceRequest(nil), a.requests...)
}

type statusRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *statusRecorder) OnStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func (r *statusRecorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}
