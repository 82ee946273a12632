package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserver_queries_total",
		Help: "Completed queries, labelled by whether web search was requested.",
	}, []string{"web_search"})

	queryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserver_query_failures_total",
		Help: "Failed queries by failure class.",
	}, []string{"reason"})
)
