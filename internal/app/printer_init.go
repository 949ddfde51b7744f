package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/printer"
	"github.com/vladislavdragonenkov/pos/internal/printer/fileprinter"
	"github.com/vladislavdragonenkov/pos/internal/printer/netprinter"
	"github.com/vladislavdragonenkov/pos/internal/printer/serialport"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

// newPrinterAdapter выбирает адаптер по POS_PRINTER_DRIVER.
func newPrinterAdapter(cfg Config, p settings.Printer, logger *log.Entry) (printer.Adapter, error) {
	switch cfg.PrinterDriver {
	case PrinterDriverSerial:
		return serialport.New(serialport.Config{
			Ports:              cfg.PrinterPorts,
			BaudRate:           cfg.PrinterBaudRate,
			ServiceUUID:        p.ServiceUUID,
			CharacteristicUUID: p.CharacteristicUUID,
		}, logger.WithField("component", "printer-serial")), nil
	case PrinterDriverNet:
		return netprinter.New(netprinter.Config{
			Address:            cfg.PrinterAddress,
			DialTimeout:        cfg.PrinterConnectTimeout,
			ServiceUUID:        p.ServiceUUID,
			CharacteristicUUID: p.CharacteristicUUID,
		}), nil
	case PrinterDriverFile:
		return fileprinter.New(fileprinter.Config{
			Path:               cfg.PrinterPath,
			ServiceUUID:        p.ServiceUUID,
			CharacteristicUUID: p.CharacteristicUUID,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported printer driver %q", cfg.PrinterDriver)
	}
}
