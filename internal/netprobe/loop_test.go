package netprobe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bc-dunia/burnrig/internal/run"
)

type fakeProber struct {
	results []ProbeResult
	errs    []error
	calls   atomic.Int32
}

func (p *fakeProber) Probe(context.Context, string) (ProbeResult, error) {
	i := int(p.calls.Add(1)) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return ProbeResult{}, p.errs[i]
	}
	if i < len(p.results) {
		return p.results[i], nil
	}
	return ProbeResult{Transmitted: 4, Received: 4}, nil
}

func TestRunTestLoopAllClean(t *testing.T) {
	prober := &fakeProber{}
	tester := &Tester{Prober: prober, Target: "192.168.1.1", Interval: time.Millisecond}
	stop := run.NewStopSignal()
	go func() {
		time.Sleep(30 * time.Millisecond)
		stop.Set()
	}()

	tally := tester.RunTestLoop(context.Background(), run.NopSink(), time.Minute, stop)
	if tally.Probes == 0 {
		t.Fatal("expected at least one probe")
	}
	if !tally.Passed() {
		t.Fatalf("clean probes must pass, tally %+v", tally)
	}
}

func TestRunTestLoopAnyFailureFails(t *testing.T) {
	prober := &fakeProber{
		results: []ProbeResult{
			{Transmitted: 4, Received: 4},
			{Transmitted: 4, Received: 3, LossPct: 25},
		},
	}
	tester := &Tester{Prober: prober, Target: "10.0.0.9", Interval: time.Millisecond}
	stop := run.NewStopSignal()
	go func() {
		time.Sleep(30 * time.Millisecond)
		stop.Set()
	}()

	tally := tester.RunTestLoop(context.Background(), run.NopSink(), time.Minute, stop)
	if tally.Passed() {
		t.Fatalf("a lossy probe must fail the loop, tally %+v", tally)
	}
	if tally.Successes == 0 {
		t.Fatal("the clean probe should still count")
	}
}

func TestRunTestLoopProbeErrorFails(t *testing.T) {
	prober := &fakeProber{errs: []error{errors.New("network unreachable")}}
	tester := &Tester{Prober: prober, Target: "10.0.0.9", Interval: time.Millisecond}
	stop := run.NewStopSignal()
	go func() {
		time.Sleep(20 * time.Millisecond)
		stop.Set()
	}()

	tally := tester.RunTestLoop(context.Background(), run.NopSink(), time.Minute, stop)
	if tally.Failures == 0 {
		t.Fatal("probe error must count as failure")
	}
	if tally.Passed() {
		t.Fatal("loop with a failed probe must not pass")
	}
}

func TestRunTestLoopRespectsDuration(t *testing.T) {
	prober := &fakeProber{}
	tester := &Tester{Prober: prober, Target: "192.168.1.1", Interval: time.Millisecond}
	stop := run.NewStopSignal()

	start := time.Now()
	tester.RunTestLoop(context.Background(), run.NopSink(), 20*time.Millisecond, stop)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("loop overran duration: %v", elapsed)
	}
}

func TestWorkerRecordsPass(t *testing.T) {
	w := NewWorker("")
	w.prober = &fakeProber{}
	w.runner = &fakeRunner{outputs: map[string]string{"ip": ""}}

	barrier := run.NewStartBarrier()
	stop := run.NewStopSignal()
	verdicts := run.NewAggregator()
	env := &run.Env{
		Barrier:  barrier,
		Stop:     stop,
		Verdicts: verdicts,
		Status:   run.NopSink(),
		Duration: 20 * time.Millisecond,
	}

	barrier.Arm()
	go func() {
		time.Sleep(50 * time.Millisecond)
		stop.Set()
	}()
	if err := w.Run(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	if v := verdicts.Verdict(run.CategoryNetwork); v != run.VerdictPass {
		t.Fatalf("verdict = %s, want PASS", v)
	}
}
