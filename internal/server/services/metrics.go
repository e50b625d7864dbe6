package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linkAccessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardshare_link_access_total",
		Help: "Link access attempts by mode and outcome.",
	}, []string{"mode", "outcome"})

	sweeperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardshare_sweeper_runs_total",
		Help: "Completed expired-link sweeps.",
	})

	sweeperDeactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardshare_sweeper_links_deactivated_total",
		Help: "Links deactivated by the sweeper because they expired.",
	})

	sweeperPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardshare_sweeper_links_purged_total",
		Help: "Inactive links permanently removed by retention purges.",
	})
)

var (
	identityCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardshare_identity_cache_hits_total",
		Help: "Token resolutions answered from the identity cache.",
	})
	identityCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardshare_identity_cache_misses_total",
		Help: "Token resolutions that had to load the user.",
	})
)
