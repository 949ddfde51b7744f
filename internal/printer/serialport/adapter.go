// Package serialport подключает принтер через последовательный порт:
// Bluetooth SPP (/dev/rfcomm0, COM10) или USB-serial (/dev/ttyUSB0).
package serialport

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/printer"
)

const defaultBaudRate = 9600

// Config — параметры порта.
type Config struct {
	// Ports — явный список портов. Пустой список означает перечисление системных портов.
	Ports              []string
	BaudRate           int
	ServiceUUID        string
	CharacteristicUUID string
}

// Adapter реализует printer.Adapter поверх go.bug.st/serial.
type Adapter struct {
	cfg    Config
	logger *log.Entry
	list   func() ([]string, error)
	open   func(name string, mode *serial.Mode) (io.WriteCloser, error)
}

var _ printer.Adapter = (*Adapter)(nil)

// New создаёт адаптер.
func New(cfg Config, logger *log.Entry) *Adapter {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if logger == nil {
		logger = log.WithField("component", "printer-serial")
	}
	return &Adapter{
		cfg:    cfg,
		logger: logger,
		list:   serial.GetPortsList,
		open:   openPort,
	}
}

func openPort(name string, mode *serial.Mode) (io.WriteCloser, error) {
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Available проверяет, что порты можно перечислить.
func (a *Adapter) Available() error {
	if len(a.cfg.Ports) > 0 {
		return nil
	}
	if _, err := a.list(); err != nil {
		return fmt.Errorf("%w: list serial ports: %v", domain.ErrNotSupported, err)
	}
	return nil
}

// RequestDevice возвращает первый подходящий порт.
func (a *Adapter) RequestDevice(ctx context.Context, req printer.DeviceRequest) (printer.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Matches([]string{a.cfg.ServiceUUID}) {
		return nil, domain.ErrDeviceNotFound
	}

	ports := a.cfg.Ports
	if len(ports) == 0 {
		listed, err := a.list()
		if err != nil {
			return nil, fmt.Errorf("list serial ports: %w", err)
		}
		ports = rankPorts(listed)
	}
	if len(ports) == 0 {
		return nil, domain.ErrDeviceNotFound
	}

	name := ports[0]
	a.logger.WithField("port", name).Debug("serial port selected")

	mode := &serial.Mode{
		BaudRate: a.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return &printer.StreamDevice{
		DeviceID:           name,
		DeviceName:         filepath.Base(name),
		ServiceUUID:        a.cfg.ServiceUUID,
		CharacteristicUUID: a.cfg.CharacteristicUUID,
		Open: func(ctx context.Context) (io.WriteCloser, error) {
			port, err := a.open(name, mode)
			if err != nil {
				return nil, fmt.Errorf("open serial port %s: %w", name, err)
			}
			return port, nil
		},
	}, nil
}

// rankPorts ставит вперёд порты, похожие на Bluetooth и USB-принтеры.
func rankPorts(ports []string) []string {
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return portRank(out[i]) < portRank(out[j])
	})
	return out
}

func portRank(name string) int {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "rfcomm"):
		return 0
	case strings.Contains(lower, "ttyusb"), strings.Contains(lower, "ttyacm"):
		return 1
	case strings.HasPrefix(lower, "com"):
		return 2
	default:
		return 3
	}
}
