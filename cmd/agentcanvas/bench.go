package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentcanvas/agentcanvas"
	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/agentcanvas/agentcanvas/idp/idptest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type benchOptions struct {
	sessions    int
	concurrency int
	ops         int
	revocation  bool
	redisAddr   string
}

func newBenchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure session, refresh and membership throughput against an in-memory identity provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := benchOptions{
				sessions:    v.GetInt("sessions"),
				concurrency: v.GetInt("concurrency"),
				ops:         v.GetInt("ops"),
				revocation:  v.GetBool("revocation"),
				redisAddr:   v.GetString("bench-redis-addr"),
			}
			return runBench(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	fs := cmd.Flags()
	fs.Int("sessions", 1000, "sessions to sign in before measuring")
	fs.Int("concurrency", 64, "concurrent workers")
	fs.Int("ops", 50000, "operations per phase")
	fs.Bool("revocation", false, "enable the revocation list (miniredis unless --bench-redis-addr is set)")
	fs.String("bench-redis-addr", "", "Redis address for the revocation list")
	return cmd
}

func runBench(ctx context.Context, out io.Writer, opts benchOptions) error {
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return fmt.Errorf("sessions, concurrency and ops must be > 0")
	}

	fake := idptest.New()
	fake.ReusableCodes = true
	fake.AddOrg("org_bench", "Bench")

	cfg := agentcanvas.DefaultConfig()
	cfg.BaseURL = "http://localhost:3000"
	cfg.Session.Secret = strings.Repeat("b", 48)
	cfg.Upstream.APIKey = "bench"
	cfg.Upstream.ClientID = "bench"
	cfg.Membership.JanitorInterval = 0

	b := agentcanvas.New().WithIdentityProvider(fake)
	if opts.revocation {
		client, cleanup, err := benchRedis(out, opts.redisAddr)
		if err != nil {
			return err
		}
		defer cleanup()
		cfg.Revocation.Enabled = true
		b = b.WithRedis(client)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	tokens := make([]string, opts.sessions)
	users := make([]string, opts.sessions)
	fmt.Fprintf(out, "signing in %d sessions...\n", opts.sessions)
	seedStart := time.Now()
	for i := range tokens {
		userID := fmt.Sprintf("user_%d", i)
		code := "code_" + userID
		fake.AddUser(code, idp.User{ID: userID, Email: userID + "@bench.test"}, "rt_"+userID)
		fake.AddRefresh("rt_"+userID, &idp.AuthResponse{User: idp.User{ID: userID}, AccessToken: "at2_" + userID})
		role := "member"
		if i%10 == 0 {
			role = "admin"
		}
		fake.AddMembership("om_"+userID, userID, "org_bench", role)

		token, err := benchSignIn(ctx, engine, code)
		if err != nil {
			return err
		}
		tokens[i] = token
		users[i] = userID
	}
	fmt.Fprintf(out, "signed in in %s\n", time.Since(seedStart).Round(time.Millisecond))

	authStats := runPhase(opts, func(ctx context.Context, r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	orgStats := runPhase(opts, func(ctx context.Context, r *rand.Rand) error {
		_, err := engine.IsOrgAdmin(ctx, users[r.Intn(len(users))], "org_bench")
		return err
	})
	// A forced refresh revokes the replaced token when revocation is on, so
	// each slot keeps its latest cookie under its own lock.
	slots := make([]sync.Mutex, len(tokens))
	refreshStats := runPhase(opts, func(ctx context.Context, r *rand.Rand) error {
		i := r.Intn(len(tokens))
		slots[i].Lock()
		defer slots[i].Unlock()
		res, err := engine.Refresh(ctx, tokens[i], true)
		if err != nil {
			return err
		}
		c, err := http.ParseSetCookie(res.SessionCookie)
		if err != nil {
			return err
		}
		tokens[i] = c.Value
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "authenticate", authStats)
	printStats(out, "is_org_admin", orgStats)
	printStats(out, "refresh", refreshStats)
	return nil
}

func benchRedis(out io.Writer, addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func benchSignIn(ctx context.Context, engine *agentcanvas.Engine, code string) (string, error) {
	start, err := engine.BeginSignIn(ctx)
	if err != nil {
		return "", err
	}
	state, err := http.ParseSetCookie(start.StateCookie)
	if err != nil {
		return "", err
	}
	res, err := engine.CompleteSignIn(ctx, code, state.Value, state.Value)
	if err != nil {
		return "", err
	}
	c, err := http.ParseSetCookie(res.SessionCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

func runPhase(opts benchOptions, op func(ctx context.Context, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			ctx := context.Background()
			local := make([]time.Duration, 0, opts.ops/opts.concurrency+1)
			for {
				if int(atomic.AddInt64(&cursor, 1)) > opts.ops {
					break
				}
				t0 := time.Now()
				if err := op(ctx, r); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
		return phaseStats{total: total, failures: failures}
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
