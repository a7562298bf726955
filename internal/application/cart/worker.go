package cart

import (
	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
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
	w.router.Route(product.PriceUpdated{}.EventName(), useCasePriceUpdate, application.Handle(w.svc.ApplyPriceUpdate))
	w.router.Route(product.ProductUpdated{}.EventName(), useCaseProductUpdate, application.Handle(w.svc.ApplyProductUpdated))
}
