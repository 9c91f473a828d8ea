// internal/metrics/metrics.go
package metrics

// UpdateCurve выставляет текущие резерв, предложение и цену
func (c *Collector) UpdateCurve(reserve, supply, price uint64) {
	if c == nil {
		return
	}
	c.reserve.Set(float64(reserve))
	c.supply.Set(float64(supply))
	c.price.Set(float64(price))
}

// AddFees учитывает выплаченные комиссии по статьям
func (c *Collector) AddFees(referral, protocol, founders, liquidity uint64) {
	if c == nil {
		return
	}
	c.feesPaid.WithLabelValues("referral").Add(float64(referral))
	c.feesPaid.WithLabelValues("protocol").Add(float64(protocol))
	c.feesPaid.WithLabelValues("founders").Add(float64(founders))
	c.feesPaid.WithLabelValues("liquidity").Add(float64(liquidity))
}

// LockSettled counts a closed lock; path is "matured" or "early".
func (c *Collector) LockSettled(path string) {
	if c == nil {
		return
	}
	c.locksSettled.WithLabelValues(path).Inc()
}

// CrankAttempt counts one settlement attempt made by the cranker.
func (c *Collector) CrankAttempt(status string) {
	if c == nil {
		return
	}
	c.crankRuns.WithLabelValues(status).Inc()
}
