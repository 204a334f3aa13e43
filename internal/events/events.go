// Package events is the in-process live-update hub. Frontends subscribe to
// topics and react; publishing never influences the outcome of the operation
// that raised the event.
package events

import (
	"log"
	"time"

	EventBus "github.com/asaskevich/EventBus"

	"vapetrack/backend/internal/domain"
)

const (
	TopicSaleCompleted = "sale.completed"
	TopicStockUpdated  = "stock.updated"
	TopicSessionEnded  = "session.ended"
)

type SaleCompleted struct {
	ShopID       string
	SessionID    string
	CheckoutID   string
	Transactions []domain.Transaction
	TotalAmount  int64
	At           time.Time
}

type StockUpdated struct {
	ShopID      string
	ProductID   string
	Units       int
	BottleID    string
	RemainingMl int
	At          time.Time
}

type SessionEnded struct {
	ShopID   string
	ReportID string
	Session  domain.Session
	At       time.Time
}

// Hub fans out domain events. A nil *Hub is valid and drops everything,
// which keeps event wiring out of tests.
type Hub struct {
	bus EventBus.Bus
}

func NewHub() *Hub {
	return &Hub{bus: EventBus.New()}
}

func (h *Hub) SubscribeSaleCompleted(fn func(SaleCompleted)) error {
	if h == nil {
		return nil
	}
	return h.bus.SubscribeAsync(TopicSaleCompleted, fn, false)
}

func (h *Hub) SubscribeStockUpdated(fn func(StockUpdated)) error {
	if h == nil {
		return nil
	}
	return h.bus.SubscribeAsync(TopicStockUpdated, fn, false)
}

func (h *Hub) SubscribeSessionEnded(fn func(SessionEnded)) error {
	if h == nil {
		return nil
	}
	return h.bus.SubscribeAsync(TopicSessionEnded, fn, false)
}

func (h *Hub) PublishSaleCompleted(ev SaleCompleted) {
	if h == nil {
		return
	}
	h.publish(TopicSaleCompleted, ev)
}

func (h *Hub) PublishStockUpdated(ev StockUpdated) {
	if h == nil {
		return
	}
	h.publish(TopicStockUpdated, ev)
}

func (h *Hub) PublishSessionEnded(ev SessionEnded) {
	if h == nil {
		return
	}
	h.publish(TopicSessionEnded, ev)
}

func (h *Hub) publish(topic string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] WARN: publish %s panicked: %v", topic, r)
		}
	}()
	h.bus.Publish(topic, payload)
}

// Wait blocks until all async handlers have drained. Used in shutdown.
func (h *Hub) Wait() {
	if h == nil {
		return
	}
	h.bus.WaitAsync()
}
