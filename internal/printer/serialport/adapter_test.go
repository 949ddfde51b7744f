package serialport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/printer"
)

const svc = "000018f0-0000-1000-8000-00805f9b34fb"

type nopPort struct {
	bytes.Buffer
	closed bool
}

func (p *nopPort) Close() error {
	p.closed = true
	return nil
}

func newTestAdapter(cfg Config, listed []string, listErr error) (*Adapter, *nopPort, *serial.Mode) {
	a := New(cfg, nil)
	port := &nopPort{}
	var gotMode serial.Mode
	a.list = func() ([]string, error) { return listed, listErr }
	a.open = func(name string, mode *serial.Mode) (io.WriteCloser, error) {
		gotMode = *mode
		return port, nil
	}
	return a, port, &gotMode
}

func TestAvailable(t *testing.T) {
	a, _, _ := newTestAdapter(Config{}, nil, errors.New("no sysfs"))
	assert.ErrorIs(t, a.Available(), domain.ErrNotSupported)

	a, _, _ = newTestAdapter(Config{Ports: []string{"/dev/rfcomm0"}}, nil, errors.New("no sysfs"))
	assert.NoError(t, a.Available())
}

func TestRequestDevice_PrefersBluetoothPort(t *testing.T) {
	a, port, mode := newTestAdapter(Config{ServiceUUID: svc, CharacteristicUUID: "chr"},
		[]string{"/dev/ttyS0", "/dev/ttyUSB0", "/dev/rfcomm0"}, nil)

	dev, err := a.RequestDevice(context.Background(), printer.DeviceRequest{AcceptAll: true})
	require.NoError(t, err)
	assert.Equal(t, "/dev/rfcomm0", dev.ID())
	assert.Equal(t, "rfcomm0", dev.Name())

	link, err := dev.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultBaudRate, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)

	services, err := link.Services(context.Background())
	require.NoError(t, err)
	chars, err := services[0].Characteristics(context.Background())
	require.NoError(t, err)
	require.NoError(t, chars[0].WriteWithResponse(context.Background(), []byte("hi")))
	assert.Equal(t, "hi", port.String())

	require.NoError(t, link.Disconnect())
	assert.True(t, port.closed)
}

func TestRequestDevice_StrictFilter(t *testing.T) {
	a, _, _ := newTestAdapter(Config{Ports: []string{"COM10"}, ServiceUUID: svc}, nil, nil)

	_, err := a.RequestDevice(context.Background(), printer.DeviceRequest{Services: []string{"other"}})
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)

	dev, err := a.RequestDevice(context.Background(), printer.DeviceRequest{Services: []string{svc}})
	require.NoError(t, err)
	assert.Equal(t, "COM10", dev.ID())
}

func TestRequestDevice_NoPorts(t *testing.T) {
	a, _, _ := newTestAdapter(Config{}, []string{}, nil)
	_, err := a.RequestDevice(context.Background(), printer.DeviceRequest{AcceptAll: true})
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

func TestRankPorts(t *testing.T) {
	assert.Equal(t,
		[]string{"/dev/rfcomm1", "/dev/ttyACM0", "COM3", "/dev/ttyS1"},
		rankPorts([]string{"/dev/ttyS1", "", "COM3", "/dev/ttyACM0", "/dev/rfcomm1"}))
}
