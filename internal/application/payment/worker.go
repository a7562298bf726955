package payment

import (
	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
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
	w.router.Route(order.InvoiceIssued{}.EventName(), useCaseProcess, application.Handle(w.svc.ProcessPayment))
}
