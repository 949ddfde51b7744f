// Package printer доставляет байты на термопринтер через беспроводной или
// последовательный канал. Сам стек связи сюда не входит: транспорт работает с
// интерфейсами Adapter/Device/Link/Service/Characteristic, а конкретные адаптеры
// лежат во вложенных пакетах.
package printer

import (
	"context"
	"strings"
)

// State — состояние соединения с принтером.
type State int

const (
	StateDisconnected State = iota
	StateDiscovering
	StateNegotiating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDiscovering:
		return "discovering"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Properties — права записи характеристики.
type Properties struct {
	Write                bool
	WriteWithoutResponse bool
}

// Writable сообщает, можно ли писать в характеристику хоть каким-то способом.
func (p Properties) Writable() bool {
	return p.Write || p.WriteWithoutResponse
}

// Characteristic — канал, в который пишутся данные.
type Characteristic interface {
	UUID() string
	Properties() Properties
	WriteWithResponse(ctx context.Context, data []byte) error
	WriteWithoutResponse(ctx context.Context, data []byte) error
}

// Service группирует характеристики устройства.
type Service interface {
	UUID() string
	Characteristics(ctx context.Context) ([]Characteristic, error)
}

// DisconnectListener получает уведомление о потере связи.
type DisconnectListener interface {
	OnDisconnect()
}

// DisconnectFunc позволяет использовать функцию как DisconnectListener.
type DisconnectFunc func()

// OnDisconnect вызывает f.
func (f DisconnectFunc) OnDisconnect() { f() }

// Link — установленное соединение с устройством.
type Link interface {
	Services(ctx context.Context) ([]Service, error)
	Connected() bool
	Disconnect() error
	// Subscribe регистрирует слушателя разрыва и возвращает функцию отписки.
	Subscribe(l DisconnectListener) (unsubscribe func())
}

// Device — найденное устройство.
type Device interface {
	ID() string
	Name() string
	Connect(ctx context.Context) (Link, error)
}

// DeviceRequest — фильтр выбора устройства.
type DeviceRequest struct {
	AcceptAll bool
	Services  []string
}

// Matches проверяет, объявляет ли устройство хотя бы один из запрошенных сервисов.
func (r DeviceRequest) Matches(advertised []string) bool {
	if r.AcceptAll || len(r.Services) == 0 {
		return true
	}
	for _, want := range r.Services {
		for _, have := range advertised {
			if SameUUID(want, have) {
				return true
			}
		}
	}
	return false
}

// Adapter — точка входа в стек связи.
type Adapter interface {
	// Available возвращает domain.ErrNotSupported, если стек недоступен.
	Available() error
	// RequestDevice возвращает domain.ErrDeviceNotFound при отмене или отсутствии совпадений.
	RequestDevice(ctx context.Context, req DeviceRequest) (Device, error)
}

// Status — снимок состояния транспорта для наблюдателей.
type Status struct {
	State          State  `json:"-"`
	StateName      string `json:"state"`
	Connected      bool   `json:"connected"`
	DeviceID       string `json:"deviceId,omitempty"`
	DeviceName     string `json:"deviceName,omitempty"`
	Service        string `json:"service,omitempty"`
	Characteristic string `json:"characteristic,omitempty"`
	LastError      string `json:"lastError,omitempty"`
}

// StatusObserver получает каждое изменение состояния.
type StatusObserver interface {
	OnStatus(Status)
}

// ObserverFunc позволяет использовать функцию как StatusObserver.
type ObserverFunc func(Status)

// OnStatus вызывает f.
func (f ObserverFunc) OnStatus(s Status) { f(s) }

// SameUUID сравнивает идентификаторы без учёта регистра.
func SameUUID(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
