package stock

import (
	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
)

// Worker subscribes the stock engine to its inbound events.
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
	w.router.Route(cart.ReserveStock{}.EventName(), useCaseReserve, application.Handle(w.svc.ReserveStock))
	w.router.Route(payment.PaymentConfirmed{}.EventName(), useCaseConfirm, application.Handle(w.svc.ConfirmReservation))
	w.router.Route(payment.PaymentFailed{}.EventName(), useCaseCancel, application.Handle(w.svc.CancelReservation))
	w.router.Route(product.ProductUpdated{}.EventName(), useCaseProductUpdate, application.Handle(w.svc.ApplyProductUpdate))
}
