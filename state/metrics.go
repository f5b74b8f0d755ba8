// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "resourcevm_state"

	kindModule     = "module"
	kindResource   = "resource"
	kindTableEntry = "table_entry"
)

type metrics struct {
	reads   *prometheus.CounterVec
	misses  *prometheus.CounterVec
	commits prometheus.Counter
	aborts  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads",
			Help:      "Number of reads served by the state, by kind",
		}, []string{"kind"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses",
			Help:      "Number of reads for absent entries, by kind",
		}, []string{"kind"}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits",
			Help:      "Number of commits",
		}),
		aborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aborts",
			Help:      "Number of aborted batches",
		}),
	}
	if reg == nil {
		return m, nil
	}

	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.reads),
		reg.Register(m.misses),
		reg.Register(m.commits),
		reg.Register(m.aborts),
	)
	return m, errs.Err
}
