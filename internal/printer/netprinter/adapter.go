// Package netprinter подключает сетевой принтер по «сырому» TCP (порт 9100).
package netprinter

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/printer"
)

// DefaultPort — стандартный порт RAW/JetDirect.
const DefaultPort = "9100"

// Config — адрес принтера.
type Config struct {
	// Address в виде host или host:port.
	Address            string
	DialTimeout        time.Duration
	ServiceUUID        string
	CharacteristicUUID string
}

// Adapter реализует printer.Adapter для одного сетевого принтера.
type Adapter struct {
	cfg    Config
	dialer *net.Dialer
}

var _ printer.Adapter = (*Adapter)(nil)

// New создаёт адаптер.
func New(cfg Config) *Adapter {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Adapter{cfg: cfg, dialer: &net.Dialer{Timeout: cfg.DialTimeout}}
}

// Available всегда успешен: TCP есть везде.
func (a *Adapter) Available() error {
	return nil
}

// RequestDevice возвращает принтер из конфигурации.
func (a *Adapter) RequestDevice(ctx context.Context, req printer.DeviceRequest) (printer.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.cfg.Address == "" || !req.Matches([]string{a.cfg.ServiceUUID}) {
		return nil, domain.ErrDeviceNotFound
	}

	addr := normalizeAddress(a.cfg.Address)
	return &printer.StreamDevice{
		DeviceID:           addr,
		DeviceName:         addr,
		ServiceUUID:        a.cfg.ServiceUUID,
		CharacteristicUUID: a.cfg.CharacteristicUUID,
		Open: func(ctx context.Context) (io.WriteCloser, error) {
			conn, err := a.dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, fmt.Errorf("dial printer %s: %w", addr, err)
			}
			return conn, nil
		},
	}, nil
}

func normalizeAddress(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, DefaultPort)
}
