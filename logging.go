// SPDX-License-Identifier: Apache-2.0

package small

import "go.uber.org/zap"

// zapLike wraps a *zap.SugaredLogger so every component can log through a
// single small surface without importing zap directly everywhere, and so a
// nil *zap.Logger passed in by a caller never causes a crash.
type zapLike struct {
	log *zap.SugaredLogger
}

func newZapLike(l *zap.Logger) *zapLike {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLike{log: l.Sugar()}
}

func (z *zapLike) quotaExhausted(requested int64) {
	z.log.Warnw("quota exhausted", "requested_bytes", requested)
}

func (z *zapLike) capabilityProbe(name string, supported bool) {
	z.log.Infow("capability probe", "capability", name, "supported", supported)
}

func (z *zapLike) contractViolation(err error) {
	z.log.DPanicw("contract violation", "error", err)
}
