package seller

import (
	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
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
	w.router.Route(order.InvoiceIssued{}.EventName(), useCaseInvoiced, application.Handle(w.svc.ProcessInvoice))
	w.router.Route(payment.PaymentConfirmed{}.EventName(), useCasePaid, application.Handle(w.svc.ProcessPaymentConfirmed))
	w.router.Route(payment.PaymentFailed{}.EventName(), useCasePaymentFail, application.Handle(w.svc.ProcessPaymentFailed))
	w.router.Route(shipment.ShipmentNotification{}.EventName(), useCaseShipment, application.Handle(w.svc.ProcessShipmentNotification))
	w.router.Route(shipment.DeliveryNotification{}.EventName(), useCaseDelivery, application.Handle(w.svc.ProcessDeliveryNotification))
}
