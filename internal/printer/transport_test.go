package printer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

const (
	printerService = "000018f0-0000-1000-8000-00805f9b34fb"
	printerChar    = "00002af0-0000-1000-8000-00805f9b34fb"
)

var errRadio = errors.New("gatt operation failed")

func quietLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestTransport(t *testing.T, adapter Adapter, cfg settings.Printer, opts ...Option) (*Transport, *sleepRecorder) {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	tr, err := NewTransport(adapter, cfg, opts...)
	require.NoError(t, err)
	rec := &sleepRecorder{}
	tr.sleep = rec.sleep
	return tr, rec
}

func singleDevice(chars ...Characteristic) (*fakeAdapter, *fakeLink) {
	link := newFakeLink(&fakeService{uuid: printerService, chars: chars})
	return &fakeAdapter{devices: []*fakeDevice{{id: "dev-1", name: "PT-210", advertised: []string{printerService}, link: link}}}, link
}

func connected(t *testing.T, ch *fakeChar) (*Transport, *sleepRecorder, *fakeLink) {
	t.Helper()
	adapter, link := singleDevice(ch)
	tr, rec := newTestTransport(t, adapter, settings.Default().Printer)
	require.NoError(t, tr.Connect(context.Background()))
	return tr, rec, link
}

func TestNewTransport_Validation(t *testing.T) {
	cfg := settings.Default().Printer

	_, err := NewTransport(nil, cfg)
	assert.Error(t, err)

	bad := cfg
	bad.Mode = "aggressive"
	_, err = NewTransport(&fakeAdapter{}, bad)
	assert.Error(t, err)

	bad = cfg
	bad.ChunkSize = 0
	_, err = NewTransport(&fakeAdapter{}, bad)
	assert.Error(t, err)

	bad = cfg
	bad.Encoding = "klingon"
	_, err = NewTransport(&fakeAdapter{}, bad)
	assert.Error(t, err)
}

func TestConnect_PermissivePicksFirstWritableCharacteristic(t *testing.T) {
	readOnly := &fakeChar{uuid: "ro"}
	unacked := &fakeChar{uuid: "wnr", props: Properties{WriteWithoutResponse: true}}
	acked := &fakeChar{uuid: "w", props: Properties{Write: true}}

	link := newFakeLink(
		&fakeService{uuid: "svc-a", err: errRadio},
		&fakeService{uuid: "svc-b", chars: []Characteristic{readOnly, unacked}},
		&fakeService{uuid: "svc-c", chars: []Characteristic{acked}},
	)
	adapter := &fakeAdapter{devices: []*fakeDevice{{id: "dev-1", name: "Any", link: link}}}
	rec := &statusRecorder{}

	tr, _ := newTestTransport(t, adapter, settings.Default().Printer, WithObserver(rec))
	require.NoError(t, tr.Connect(context.Background()))

	st := tr.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, "svc-b", st.Service)
	assert.Equal(t, "wnr", st.Characteristic)
	assert.Equal(t, "Any", st.DeviceName)
	assert.Equal(t, []State{StateDiscovering, StateNegotiating, StateConnected}, rec.States())

	reqs := adapter.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].AcceptAll)
	assert.Equal(t, 1, link.Listeners())
}

func TestConnect_StrictPrefersConfiguredCharacteristic(t *testing.T) {
	other := &fakeChar{uuid: "other", props: Properties{Write: true}}
	preferred := &fakeChar{uuid: strings.ToUpper(printerChar), props: Properties{Write: true}}

	link := newFakeLink(
		&fakeService{uuid: "0000ffe0-0000-1000-8000-00805f9b34fb", chars: []Characteristic{other}},
		&fakeService{uuid: printerService, chars: []Characteristic{other, preferred}},
	)
	adapter := &fakeAdapter{devices: []*fakeDevice{
		{id: "headset", name: "Headset", advertised: []string{"0000110b-0000-1000-8000-00805f9b34fb"}, link: newFakeLink()},
		{id: "printer", name: "PT-210", advertised: []string{printerService}, link: link},
	}}

	cfg := settings.Default().Printer
	cfg.Mode = settings.DiscoveryStrict
	tr, _ := newTestTransport(t, adapter, cfg)
	require.NoError(t, tr.Connect(context.Background()))

	st := tr.Status()
	assert.Equal(t, "printer", st.DeviceID)
	assert.Equal(t, printerService, st.Service)
	assert.Equal(t, strings.ToUpper(printerChar), st.Characteristic)

	reqs := adapter.Requests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].AcceptAll)
	assert.Equal(t, []string{printerService}, reqs[0].Services)
}

func TestConnect_StrictFallsBackToAnyWritableInService(t *testing.T) {
	other := &fakeChar{uuid: "other", props: Properties{WriteWithoutResponse: true}}
	adapter, _ := singleDevice(other)

	cfg := settings.Default().Printer
	cfg.Mode = settings.DiscoveryStrict
	tr, _ := newTestTransport(t, adapter, cfg)
	require.NoError(t, tr.Connect(context.Background()))
	assert.Equal(t, "other", tr.Status().Characteristic)
}

func TestConnect_StrictWithoutMatchingDevice(t *testing.T) {
	adapter := &fakeAdapter{devices: []*fakeDevice{{id: "x", advertised: []string{"other"}, link: newFakeLink()}}}
	cfg := settings.Default().Printer
	cfg.Mode = settings.DiscoveryStrict

	tr, _ := newTestTransport(t, adapter, cfg)
	err := tr.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrDeviceNotFound)

	st := tr.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.NotEmpty(t, st.LastError)
}

func TestConnect_NoWritableChannelClosesLink(t *testing.T) {
	adapter, link := singleDevice(&fakeChar{uuid: "ro"})
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)

	err := tr.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrNoWritableChannel)
	assert.Equal(t, 1, link.disconnects)
	assert.Equal(t, StateDisconnected, tr.Status().State)
	assert.False(t, tr.Connected())
}

func TestConnect_NotSupported(t *testing.T) {
	tr, _ := newTestTransport(t, &fakeAdapter{availableErr: domain.ErrNotSupported}, settings.Default().Printer)
	require.ErrorIs(t, tr.Connect(context.Background()), domain.ErrNotSupported)
}

func TestConnect_DeviceConnectFailure(t *testing.T) {
	adapter := &fakeAdapter{devices: []*fakeDevice{{id: "x", name: "X", connectErr: errRadio, link: newFakeLink()}}}
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)

	require.ErrorIs(t, tr.Connect(context.Background()), errRadio)
	assert.Equal(t, StateDisconnected, tr.Status().State)
}

func TestConnect_ConcurrentCallIsBusy(t *testing.T) {
	adapter, _ := singleDevice(&fakeChar{uuid: printerChar, props: Properties{Write: true}})
	adapter.entered = make(chan struct{})
	adapter.release = make(chan struct{})
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)

	done := make(chan error, 1)
	go func() { done <- tr.Connect(context.Background()) }()

	<-adapter.entered
	assert.ErrorIs(t, tr.Connect(context.Background()), domain.ErrBusy)
	assert.Equal(t, StateDiscovering, tr.Status().State)

	close(adapter.release)
	require.NoError(t, <-done)
	assert.Len(t, adapter.Requests(), 1)
	assert.True(t, tr.Connected())
}

func TestDisconnect_CancelsDiscovery(t *testing.T) {
	adapter, _ := singleDevice(&fakeChar{uuid: printerChar, props: Properties{Write: true}})
	adapter.entered = make(chan struct{})
	adapter.release = make(chan struct{})
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)

	done := make(chan error, 1)
	go func() { done <- tr.Connect(context.Background()) }()

	<-adapter.entered
	require.NoError(t, tr.Disconnect())
	assert.Equal(t, StateDisconnected, tr.Status().State)

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("connect did not observe cancellation")
	}
	assert.Equal(t, StateDisconnected, tr.Status().State)
	assert.Len(t, adapter.Requests(), 1)

	close(adapter.release)
	require.NoError(t, tr.Connect(context.Background()))
	assert.True(t, tr.Connected())
	assert.Len(t, adapter.Requests(), 2)
}

func TestDisconnect_DuringNegotiationClosesNewLink(t *testing.T) {
	adapter, link := singleDevice(&fakeChar{uuid: printerChar, props: Properties{Write: true}})
	dev := adapter.devices[0]
	dev.entered = make(chan struct{})
	dev.gate = make(chan struct{})
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)

	done := make(chan error, 1)
	go func() { done <- tr.Connect(context.Background()) }()

	<-dev.entered
	assert.Equal(t, StateNegotiating, tr.Status().State)
	require.NoError(t, tr.Disconnect())

	assert.ErrorIs(t, tr.Connect(context.Background()), domain.ErrBusy)
	assert.Len(t, adapter.Requests(), 1)

	close(dev.gate)
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, StateDisconnected, tr.Status().State)
	assert.False(t, tr.Connected())
	assert.Equal(t, 1, link.disconnects)
	assert.Equal(t, 0, link.Listeners())
}

func TestConnect_LinkDroppedWhileSubscribing(t *testing.T) {
	adapter, link := singleDevice(&fakeChar{uuid: printerChar, props: Properties{Write: true}})
	link.dropOnSubscribe = true
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)

	done := make(chan error, 1)
	go func() { done <- tr.Connect(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, domain.ErrNotConnected)
	case <-time.After(time.Second):
		t.Fatal("connect blocked on disconnect notification")
	}
	st := tr.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.Equal(t, "link lost", st.LastError)
	assert.Equal(t, 0, link.Listeners())
}

func TestConnect_DiscoveryTimeout(t *testing.T) {
	adapter, _ := singleDevice(&fakeChar{uuid: printerChar, props: Properties{Write: true}})
	adapter.release = make(chan struct{})

	cfg := settings.Default().Printer
	cfg.DiscoveryTimeout = 20 * time.Millisecond
	tr, _ := newTestTransport(t, adapter, cfg)

	err := tr.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrDeviceNotFound)
	assert.Equal(t, StateDisconnected, tr.Status().State)
}

func TestConnect_WhenConnectedIsNoop(t *testing.T) {
	adapter, _ := singleDevice(&fakeChar{uuid: printerChar, props: Properties{Write: true}})
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)

	require.NoError(t, tr.Connect(context.Background()))
	require.NoError(t, tr.Connect(context.Background()))
	assert.Len(t, adapter.Requests(), 1)
}

func TestDisconnect(t *testing.T) {
	ch := &fakeChar{uuid: printerChar, props: Properties{Write: true}}
	tr, _, link := connected(t, ch)

	require.NoError(t, tr.Disconnect())
	assert.Equal(t, 1, link.disconnects)
	assert.Equal(t, 0, link.Listeners())
	assert.Equal(t, StateDisconnected, tr.Status().State)

	require.NoError(t, tr.Disconnect())
	assert.Equal(t, 1, link.disconnects)

	_, err := tr.SendData(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestLinkLostResetsState(t *testing.T) {
	ch := &fakeChar{uuid: printerChar, props: Properties{Write: true}}
	rec := &statusRecorder{}
	adapter, link := singleDevice(ch)
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer, WithObserver(rec))
	require.NoError(t, tr.Connect(context.Background()))

	link.Drop()

	st := tr.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.Equal(t, "link lost", st.LastError)
	assert.Equal(t, StateDisconnected, rec.States()[len(rec.States())-1])

	_, err := tr.SendData(context.Background(), "after drop")
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	require.NoError(t, tr.Connect(context.Background()))
	assert.True(t, tr.Connected())
}

func TestSendData_NotConnected(t *testing.T) {
	tr, _ := newTestTransport(t, &fakeAdapter{}, settings.Default().Printer)
	_, err := tr.SendData(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSendData_BulkPrefersAcknowledgedWrite(t *testing.T) {
	ch := &fakeChar{uuid: printerChar, props: Properties{Write: true, WriteWithoutResponse: true}}
	tr, rec, _ := connected(t, ch)

	d, err := tr.SendData(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Delivery{Bytes: 5}, d)
	assert.Equal(t, [][]byte{[]byte("hello")}, ch.Written())
	assert.Equal(t, []string{"response"}, ch.modes)
	assert.Empty(t, rec.delays)
}

func TestSendData_UnacknowledgedWriteWhenOnlyOption(t *testing.T) {
	ch := &fakeChar{uuid: printerChar, props: Properties{WriteWithoutResponse: true}}
	tr, _, _ := connected(t, ch)

	_, err := tr.SendData(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"no-response"}, ch.modes)
}

func TestSendData_ProbeThenChunksInOrder(t *testing.T) {
	ch := &fakeChar{
		uuid:  printerChar,
		props: Properties{Write: true},
		fail: func(data []byte) error {
			if len(data) > 10 {
				return errRadio
			}
			return nil
		},
	}
	adapter, _ := singleDevice(ch)
	m := metrics.NewPOSMetricsWithRegisterer(prometheus.NewRegistry())
	tr, rec := newTestTransport(t, adapter, settings.Default().Printer, WithMetrics(m))
	require.NoError(t, tr.Connect(context.Background()))

	payload := strings.Repeat("0123456789abcdef", 8)
	d, err := tr.SendData(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, Delivery{Bytes: 128, Fallback: true, Chunks: 13}, d)

	written := ch.Written()
	require.Len(t, written, 14)
	assert.Equal(t, []byte("Test\n"), written[0])
	for i, chunk := range written[1:] {
		assert.LessOrEqual(t, len(chunk), 10, "chunk %d", i)
	}
	assert.Len(t, written[len(written)-1], 8)
	assert.Equal(t, []byte(payload), bytes.Join(written[1:], nil))

	require.Len(t, rec.delays, 13)
	for _, delay := range rec.delays {
		assert.Equal(t, 10*time.Millisecond, delay)
	}
}

func TestSendData_ProbeFailureAbortsWithoutChunking(t *testing.T) {
	ch := &fakeChar{
		uuid:  printerChar,
		props: Properties{Write: true},
		fail:  func([]byte) error { return errRadio },
	}
	tr, rec, _ := connected(t, ch)

	payload := strings.Repeat("x", 120)
	d, err := tr.SendData(context.Background(), payload)
	require.ErrorIs(t, err, domain.ErrWriteFailed)
	assert.ErrorIs(t, err, errRadio)
	assert.False(t, d.Fallback)

	attempts := ch.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, []byte(payload), attempts[0])
	assert.Equal(t, []byte("Test\n"), attempts[1])
	assert.Empty(t, ch.Written())
	assert.Empty(t, rec.delays)
}

func TestSendData_ChunkFailureStopsDelivery(t *testing.T) {
	ch := &fakeChar{
		uuid:  printerChar,
		props: Properties{Write: true},
		fail: func(data []byte) error {
			if len(data) > 10 || bytes.HasPrefix(data, []byte("X")) {
				return errRadio
			}
			return nil
		},
	}
	tr, _, _ := connected(t, ch)

	payload := strings.Repeat("a", 10) + "X" + strings.Repeat("b", 9) + strings.Repeat("c", 10)
	d, err := tr.SendData(context.Background(), payload)
	require.ErrorIs(t, err, domain.ErrWriteFailed)
	assert.Equal(t, 1, d.Chunks)
	assert.Len(t, ch.Attempts(), 4)
}

func TestSendData_CancelBetweenChunks(t *testing.T) {
	ch := &fakeChar{
		uuid:  printerChar,
		props: Properties{Write: true},
		fail: func(data []byte) error {
			if len(data) > 10 {
				return errRadio
			}
			return nil
		},
	}
	tr, _, _ := connected(t, ch)

	ctx, cancel := context.WithCancel(context.Background())
	tr.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	d, err := tr.SendData(ctx, strings.Repeat("z", 50))
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrWriteFailed)
	assert.Equal(t, 1, d.Chunks)
}

func TestSendData_QueuedWriteUsesCurrentChannel(t *testing.T) {
	oldChar := &fakeChar{
		uuid:  printerChar,
		props: Properties{Write: true},
		fail: func(data []byte) error {
			if len(data) > 10 {
				return errRadio
			}
			return nil
		},
	}
	adapter, _ := singleDevice(oldChar)
	tr, _ := newTestTransport(t, adapter, settings.Default().Printer)
	require.NoError(t, tr.Connect(context.Background()))

	paused := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once
	tr.sleep = func(ctx context.Context, _ time.Duration) error {
		once.Do(func() {
			close(paused)
			<-resume
		})
		return ctx.Err()
	}

	first := make(chan error, 1)
	go func() {
		_, err := tr.SendData(context.Background(), strings.Repeat("a", 20))
		first <- err
	}()
	<-paused

	second := make(chan error, 1)
	go func() {
		_, err := tr.SendData(context.Background(), "second")
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	newChar := &fakeChar{uuid: printerChar, props: Properties{Write: true}}
	require.NoError(t, tr.Disconnect())
	adapter.devices[0].link = newFakeLink(&fakeService{uuid: printerService, chars: []Characteristic{newChar}})
	require.NoError(t, tr.Connect(context.Background()))

	close(resume)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, [][]byte{[]byte("second")}, newChar.Written())
	for _, w := range oldChar.Written() {
		assert.NotEqual(t, []byte("second"), w)
	}
}

func TestSendData_EncodesWithCodePage(t *testing.T) {
	ch := &fakeChar{uuid: printerChar, props: Properties{Write: true}}
	adapter, _ := singleDevice(ch)
	cfg := settings.Default().Printer
	cfg.Encoding = "windows-1251"
	tr, _ := newTestTransport(t, adapter, cfg)
	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.SendData(context.Background(), "Привет")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}}, ch.Written())
}

func TestNewEncoder(t *testing.T) {
	enc, err := NewEncoder("")
	require.NoError(t, err)
	out, err := enc("ဆန်")
	require.NoError(t, err)
	assert.Equal(t, []byte("ဆန်"), out)

	enc, err = NewEncoder("IBM437")
	require.NoError(t, err)
	out, err = enc("é")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82}, out)

	_, err = NewEncoder("klingon")
	assert.Error(t, err)
}

func TestDeviceRequestMatches(t *testing.T) {
	assert.True(t, DeviceRequest{AcceptAll: true}.Matches(nil))
	assert.True(t, DeviceRequest{Services: []string{"ABC"}}.Matches([]string{"x", "abc"}))
	assert.False(t, DeviceRequest{Services: []string{"abc"}}.Matches([]string{"x"}))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "discovering", StateDiscovering.String())
	assert.Equal(t, "negotiating", StateNegotiating.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "unknown", State(42).String())
}
