package services

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// IDGenerator produces entity identifiers. The default formats are P#####,
// V### and R<epoch millis>.
type IDGenerator interface {
	ProjectID() string
	VendorID() string
	ResponseID() string
}

// RandomIDGenerator is the production generator. Response ids are strictly
// increasing within the process even when two arrive in the same millisecond.
type RandomIDGenerator struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	lastResp int64
	now      func() time.Time
}

func NewRandomIDGenerator() *RandomIDGenerator {
	seed := uint64(time.Now().UnixNano())
	return &RandomIDGenerator{
		rnd: rand.New(rand.NewPCG(seed, seed>>7|1)),
		now: time.Now,
	}
}

func (g *RandomIDGenerator) ProjectID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("P%05d", g.rnd.IntN(100000))
}

func (g *RandomIDGenerator) VendorID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("V%03d", g.rnd.IntN(1000))
}

func (g *RandomIDGenerator) ResponseID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.lastResp {
		ms = g.lastResp + 1
	}
	g.lastResp = ms
	return fmt.Sprintf("R%d", ms)
}

// SequentialIDGenerator hands out P00001, V001, R1, ... in order. Tests and
// the offline CLI use it for reproducible output.
type SequentialIDGenerator struct {
	mu        sync.Mutex
	projects  int
	vendors   int
	responses int
}

func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

func (g *SequentialIDGenerator) ProjectID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.projects++
	return fmt.Sprintf("P%05d", g.projects)
}

func (g *SequentialIDGenerator) VendorID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vendors++
	return fmt.Sprintf("V%03d", g.vendors)
}

func (g *SequentialIDGenerator) ResponseID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses++
	return fmt.Sprintf("R%d", g.responses)
}
