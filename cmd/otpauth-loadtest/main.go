// Command otpauth-loadtest measures otp.RedisCache throughput: it seeds one
// pending code per email, then runs a reissue phase and a verify phase with
// many concurrent workers and prints latency percentiles for each.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/otpAuth/otp"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type pendingState struct {
	email string
	code  string
	mu    sync.Mutex
}

func main() {
	var (
		emails      = flag.Int("emails", 100000, "number of pending codes to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (reissue + verify)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt:otp", "otp key prefix")
	)
	flag.Parse()

	if *emails <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "emails, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cache, err := otp.NewRedisCache(client, *prefix, otp.Config{Digits: otp.DefaultDigits, TTL: time.Hour})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache init failed: %v\n", err)
		os.Exit(1)
	}

	states := make([]pendingState, *emails)
	fmt.Printf("seeding %d codes...\n", *emails)
	startSeed := time.Now()
	for i := 0; i < *emails; i++ {
		email := fmt.Sprintf("user-%d@loadtest.local", i)
		code, err := cache.Issue(ctx, email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = pendingState{email: email, code: code}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	reissueStats := runPhase(ctx, states, *ops, *concurrency, 7919, func(ctx context.Context, s *pendingState) error {
		code, err := cache.Issue(ctx, s.email)
		if err == nil {
			s.code = code
		}
		return err
	})
	verifyStats := runPhase(ctx, states, *ops, *concurrency, 6151, func(ctx context.Context, s *pendingState) error {
		if err := cache.Verify(ctx, s.email, s.code); err != nil {
			return err
		}
		// keep the email pending for the next pick
		code, err := cache.Issue(ctx, s.email)
		if err == nil {
			s.code = code
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("reissue", reissueStats)
	printStats("verify", verifyStats)
}

// runPhase spreads ops across workers; each op locks one randomly chosen state
// so a verify never races the reissue of the same email.
func runPhase(ctx context.Context, states []pendingState, ops, concurrency int, seed int64, op func(context.Context, *pendingState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				err := op(ctx, state)
				d := time.Since(t0)
				state.mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
