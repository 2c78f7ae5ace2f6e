package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Saga struct {
	Started     prometheus.Counter
	Compensated prometheus.Counter
	Confirmed   prometheus.Counter
}

func NewSaga() *Saga {
	s := &Saga{
		Started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookingsaga", Subsystem: "saga",
			Name: "started_total", Help: "Booking sagas started.",
		}),
		Compensated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookingsaga", Subsystem: "saga",
			Name: "compensated_total", Help: "Booking sagas that ran compensation.",
		}),
		Confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookingsaga", Subsystem: "saga",
			Name: "confirmed_total", Help: "Bookings confirmed after both acks.",
		}),
	}
	prometheus.MustRegister(s.Started, s.Compensated, s.Confirmed)
	return s
}

type Payment struct {
	Processed *prometheus.CounterVec
}

func NewPayment() *Payment {
	p := &Payment{
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingsaga", Subsystem: "payment",
			Name: "processed_total", Help: "Payments by terminal outcome.",
		}, []string{"outcome"}),
	}
	prometheus.MustRegister(p.Processed)
	return p
}

func Handler() http.Handler {
	return promhttp.Handler()
}
