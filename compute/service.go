package compute

import (
	"context"
	"strconv"

	"github.com/kbukum/scalestore/apicache"
	"github.com/kbukum/scalestore/logger"
	"github.com/kbukum/scalestore/resilience"
)

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the cache lifetime in seconds for every request the service
// builds. Zero leaves the engine default in place.
func WithTTL(seconds int64) Option {
	return func(s *Service) { s.ttl = seconds }
}

// WithRateLimiter guards origin calls with limiter.
func WithRateLimiter(limiter *resilience.RateLimiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// Service answers instance and NIC queries through the cache engine.
type Service struct {
	engine  *apicache.Engine
	origin  Origin
	limiter *resilience.RateLimiter
	log     *logger.Logger
	ttl     int64
}

// NewService creates a Service. Without WithRateLimiter, origin calls are
// not throttled.
func NewService(engine *apicache.Engine, origin Origin, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		engine: engine,
		origin: origin,
		log:    logger.OrDefault(log, "compute"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) request(api string, params ...string) apicache.Request {
	return apicache.Request{API: api, Parameters: params, TTL: s.ttl}
}

// call runs fn once a rate-limit token is available.
func (s *Service) call(ctx context.Context, api string, fn func() error) error {
	s.log.Debug("Calling origin", map[string]interface{}{logger.FieldOperation: api})
	if s.limiter == nil {
		return fn()
	}
	return s.limiter.ExecuteWait(ctx, fn)
}

// ListInstances returns the instances of group.
func (s *Service) ListInstances(ctx context.Context, group string, policy apicache.Policy) (*apicache.Result[[]Instance], error) {
	req := s.request(APIListInstances, group)
	return apicache.Fetch(ctx, s.engine, req, policy, func(ctx context.Context) (*[]Instance, error) {
		var out []Instance
		err := s.call(ctx, APIListInstances, func() (err error) {
			out, err = s.origin.ListInstances(ctx, group)
			return err
		})
		if err != nil || out == nil {
			return nil, err
		}
		return &out, nil
	})
}

// DescribeInstance returns one instance of group. A numeric key is a
// positional instance id and is fetched directly. Any other key is matched
// against VMID and Name in the instance list, which is obtained under the
// same policy so a cached list is reused; the result then carries the
// list's cache provenance.
func (s *Service) DescribeInstance(ctx context.Context, group, key string, policy apicache.Policy) (*apicache.Result[Instance], error) {
	if isNumeric(key) {
		req := s.request(APIDescribeInstance, group, key)
		return apicache.Fetch(ctx, s.engine, req, policy, func(ctx context.Context) (*Instance, error) {
			var out *Instance
			err := s.call(ctx, APIDescribeInstance, func() (err error) {
				out, err = s.origin.GetInstance(ctx, group, key)
				return err
			})
			return out, err
		})
	}

	list, err := s.ListInstances(ctx, group, policy)
	if err != nil {
		return nil, err
	}
	res := &apicache.Result[Instance]{HitCache: list.HitCache, CacheTime: list.CacheTime, TTL: list.TTL}
	if list.Result == nil {
		return res, nil
	}
	for i := range *list.Result {
		inst := (*list.Result)[i]
		if inst.VMID == key || inst.Name == key {
			res.Result = &inst
			break
		}
	}
	return res, nil
}

// ListNetworkInterfaces returns the NICs of group.
func (s *Service) ListNetworkInterfaces(ctx context.Context, group string, policy apicache.Policy) (*apicache.Result[[]NetworkInterface], error) {
	req := s.request(APIListNetworkInterfaces, group)
	return apicache.Fetch(ctx, s.engine, req, policy, func(ctx context.Context) (*[]NetworkInterface, error) {
		var out []NetworkInterface
		err := s.call(ctx, APIListNetworkInterfaces, func() (err error) {
			out, err = s.origin.ListNetworkInterfaces(ctx, group)
			return err
		})
		if err != nil || out == nil {
			return nil, err
		}
		return &out, nil
	})
}

func isNumeric(key string) bool {
	if key == "" {
		return false
	}
	_, err := strconv.ParseUint(key, 10, 64)
	return err == nil
}
