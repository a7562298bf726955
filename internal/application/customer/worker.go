package customer

import (
	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
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
	w.router.Route(shipment.DeliveryNotification{}.EventName(), useCaseDelivery, application.Handle(w.svc.ProcessDeliveryNotification))
	w.router.Route(payment.PaymentConfirmed{}.EventName(), useCasePaid, application.Handle(w.svc.ProcessPaymentConfirmed))
	w.router.Route(payment.PaymentFailed{}.EventName(), useCasePaymentFail, application.Handle(w.svc.ProcessPaymentFailed))
}
