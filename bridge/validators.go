package bridge

import (
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/zcli/zkernel/session"
)

// Validator checks an incoming frame before it reaches the dispatcher.
// Validation failures are reported to the client in the normal envelope
// channel and the frame is not dispatched.
type Validator interface {
	Validate(frame []byte, sess *session.Session) error
}

// SizeValidator rejects frames above a byte cap.
type SizeValidator struct {
	Max int
}

func (v *SizeValidator) Validate(frame []byte, _ *session.Session) error {
	if v.Max > 0 && len(frame) > v.Max {
		return fmt.Errorf("message size %d exceeds limit %d", len(frame), v.Max)
	}
	return nil
}

// limitersParamKey stores the session's limiter pair in its params map.
const limitersParamKey = "bridge_rate_limiters"

// limiterPair holds the per-second and per-minute limiters for a session.
type limiterPair struct {
	rps *rate.Limiter
	rpm *rate.Limiter
}

// Throttle limits the rate of frames per session with RPS and RPM budgets.
type Throttle struct {
	RPS int
	RPM int
}

func (t *Throttle) limiters(sess *session.Session) *limiterPair {
	if value, ok := sess.Params.Load(limitersParamKey); ok {
		if pair, ok := value.(*limiterPair); ok && pair != nil {
			return pair
		}
	}
	pair := &limiterPair{}
	if t.RPS > 0 {
		pair.rps = rate.NewLimiter(rate.Limit(t.RPS), t.RPS)
	}
	if t.RPM > 0 {
		pair.rpm = rate.NewLimiter(rate.Limit(t.RPM)/60.0, t.RPM)
	}
	sess.Params.Store(limitersParamKey, pair)
	return pair
}

func (t *Throttle) Validate(_ []byte, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	pair := t.limiters(sess)
	if pair.rpm != nil && !pair.rpm.Allow() {
		return errors.New("per-minute rate limit exceeded")
	}
	if pair.rps != nil && !pair.rps.Allow() {
		return errors.New("per-second rate limit exceeded")
	}
	return nil
}
