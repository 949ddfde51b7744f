// Package fileprinter пишет полезную нагрузку в файл или узел устройства
// (/dev/usb/lp0). Используется для системной печати и пробных прогонов.
package fileprinter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/printer"
)

// Config — путь назначения.
type Config struct {
	Path               string
	ServiceUUID        string
	CharacteristicUUID string
}

// Adapter реализует printer.Adapter для файла.
type Adapter struct {
	cfg Config
}

var _ printer.Adapter = (*Adapter)(nil)

// New создаёт адаптер.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Available() error {
	return nil
}

// RequestDevice возвращает устройство для настроенного пути.
func (a *Adapter) RequestDevice(ctx context.Context, req printer.DeviceRequest) (printer.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.cfg.Path == "" || !req.Matches([]string{a.cfg.ServiceUUID}) {
		return nil, domain.ErrDeviceNotFound
	}

	path := a.cfg.Path
	return &printer.StreamDevice{
		DeviceID:           path,
		DeviceName:         filepath.Base(path),
		ServiceUUID:        a.cfg.ServiceUUID,
		CharacteristicUUID: a.cfg.CharacteristicUUID,
		Open: func(context.Context) (io.WriteCloser, error) {
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", path, err)
			}
			return f, nil
		},
	}, nil
}
