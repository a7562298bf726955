package order

import (
	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
)

type Worker struct {
	svc    *Service
	router application.EventRouter
}

func NewWorker(svc *Service, router application.EventRouter) *Worker {
	return &Worker{svc: svc, router: router}
}

func (w *Worker) Start() {
	if w.svc == nil || w.router == nil {
		return
	}
	w.router.Route(stock.StockConfirmed{}.EventName(), useCaseInvoice, application.Handle(w.svc.ProcessStockConfirmed))
	w.router.Route(payment.PaymentConfirmed{}.EventName(), useCasePaymentConfirm, application.Handle(w.svc.ProcessPaymentConfirmed))
	w.router.Route(payment.PaymentFailed{}.EventName(), useCasePaymentFailed, application.Handle(w.svc.ProcessPaymentFailed))
	w.router.Route(shipment.ShipmentNotification{}.EventName(), useCaseShipmentUpdated, application.Handle(w.svc.ProcessShipmentNotification))
}
