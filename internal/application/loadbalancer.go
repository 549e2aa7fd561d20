package application

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/apascualco/cinemesh/internal/domain"
)

const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round_robin"
)

// LoadBalancer decides the order in which one call tries the instances of a
// service. Implementations return a new slice and never modify the input.
type LoadBalancer interface {
	Order(instances []*domain.ServiceInstance) []*domain.ServiceInstance
}

func NewLoadBalancer(strategy string) LoadBalancer {
	if strategy == StrategyRoundRobin {
		return NewRoundRobinBalancer()
	}
	return NewRandomBalancer(nil)
}

type RoundRobinBalancer struct {
	counter uint64
}

func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{}
}

// Order rotates the list so each call starts one instance further along.
func (r *RoundRobinBalancer) Order(instances []*domain.ServiceInstance) []*domain.ServiceInstance {
	if len(instances) == 0 {
		return nil
	}

	n := atomic.AddUint64(&r.counter, 1)
	start := int((n - 1) % uint64(len(instances)))

	ordered := make([]*domain.ServiceInstance, 0, len(instances))
	ordered = append(ordered, instances[start:]...)
	ordered = append(ordered, instances[:start]...)
	return ordered
}

// RandomBalancer returns a uniformly random permutation per call.
type RandomBalancer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomBalancer uses rng when given (tests seed it) and the global
// source otherwise.
func NewRandomBalancer(rng *rand.Rand) *RandomBalancer {
	return &RandomBalancer{rng: rng}
}

func (b *RandomBalancer) Order(instances []*domain.ServiceInstance) []*domain.ServiceInstance {
	if len(instances) == 0 {
		return nil
	}

	var perm []int
	if b.rng == nil {
		perm = rand.Perm(len(instances))
	} else {
		b.mu.Lock()
		perm = b.rng.Perm(len(instances))
		b.mu.Unlock()
	}

	ordered := make([]*domain.ServiceInstance, len(instances))
	for i, j := range perm {
		ordered[i] = instances[j]
	}
	return ordered
}
