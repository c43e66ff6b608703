package warning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var warningsIssued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "attendance_warnings_issued_total",
	Help: "Warnings given to members, across all guilds.",
})
