package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

// StreamDevice — устройство с потоковым каналом (последовательный порт, TCP, файл).
// Оно объявляет один сервис с одной характеристикой, доступной для записи.
type StreamDevice struct {
	DeviceID           string
	DeviceName         string
	ServiceUUID        string
	CharacteristicUUID string
	// Open открывает поток при подключении.
	Open func(ctx context.Context) (io.WriteCloser, error)
}

var _ Device = (*StreamDevice)(nil)

func (d *StreamDevice) ID() string   { return d.DeviceID }
func (d *StreamDevice) Name() string { return d.DeviceName }

// Connect открывает поток и оборачивает его в Link.
func (d *StreamDevice) Connect(ctx context.Context) (Link, error) {
	if d.Open == nil {
		return nil, errors.New("stream device has no opener")
	}
	w, err := d.Open(ctx)
	if err != nil {
		return nil, err
	}
	return NewStreamLink(w, d.ServiceUUID, d.CharacteristicUUID), nil
}

// StreamLink превращает io.WriteCloser в Link.
type StreamLink struct {
	service *streamService

	mu        sync.Mutex
	w         io.WriteCloser
	closed    bool
	listeners map[int]DisconnectListener
	nextID    int
}

var _ Link = (*StreamLink)(nil)

// NewStreamLink создаёт Link поверх потока.
func NewStreamLink(w io.WriteCloser, serviceUUID, characteristicUUID string) *StreamLink {
	l := &StreamLink{w: w, listeners: make(map[int]DisconnectListener)}
	l.service = &streamService{
		uuid: serviceUUID,
		char: &streamCharacteristic{uuid: characteristicUUID, link: l},
	}
	return l
}

func (l *StreamLink) Services(ctx context.Context) ([]Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []Service{l.service}, nil
}

func (l *StreamLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Disconnect закрывает поток. Слушатели не вызываются: разрыв инициирован нами.
func (l *StreamLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}

func (l *StreamLink) Subscribe(dl DisconnectListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = dl
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

func (l *StreamLink) write(ctx context.Context, data []byte, flush bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return net.ErrClosed
	}
	w := l.w
	l.mu.Unlock()

	if dw, ok := w.(interface{ SetWriteDeadline(time.Time) error }); ok {
		deadline, _ := ctx.Deadline()
		_ = dw.SetWriteDeadline(deadline)
	}

	n, err := w.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err == nil && flush {
		if d, ok := w.(interface{ Drain() error }); ok {
			err = d.Drain()
		}
	}
	if err != nil && connectionLost(err) {
		l.lost()
	}
	if err != nil {
		return fmt.Errorf("stream write: %w", err)
	}
	return nil
}

// lost закрывает поток и оповещает слушателей.
func (l *StreamLink) lost() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	_ = l.w.Close()
	listeners := make([]DisconnectListener, 0, len(l.listeners))
	for _, dl := range l.listeners {
		listeners = append(listeners, dl)
	}
	l.mu.Unlock()

	for _, dl := range listeners {
		dl.OnDisconnect()
	}
}

func connectionLost(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

type streamService struct {
	uuid string
	char *streamCharacteristic
}

func (s *streamService) UUID() string { return s.uuid }

func (s *streamService) Characteristics(ctx context.Context) ([]Characteristic, error) {
	return []Characteristic{s.char}, nil
}

type streamCharacteristic struct {
	uuid string
	link *StreamLink
}

func (c *streamCharacteristic) UUID() string { return c.uuid }

func (c *streamCharacteristic) Properties() Properties {
	return Properties{Write: true, WriteWithoutResponse: true}
}

// WriteWithResponse дожидается отправки буфера, если поток это умеет.
func (c *streamCharacteristic) WriteWithResponse(ctx context.Context, data []byte) error {
	return c.link.write(ctx, data, true)
}

func (c *streamCharacteristic) WriteWithoutResponse(ctx context.Context, data []byte) error {
	return c.link.write(ctx, data, false)
}
