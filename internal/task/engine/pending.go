package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"shednotify/internal/esp"
)

type fetchResult struct {
	statuses esp.StatusMap
	err      error
	took     time.Duration
	stack    []byte
}

// pending is the single in-flight status call. done has one slot so the
// worker never blocks on delivery.
type pending struct {
	id      string
	started time.Time
	done    chan fetchResult
}

func startFetch(ctx context.Context, f Fetcher, id string, started time.Time) *pending {
	p := &pending{id: id, started: started, done: make(chan fetchResult, 1)}
	go func() {
		var res fetchResult
		t0 := time.Now()
		defer func() {
			if r := recover(); r != nil {
				res = fetchResult{
					err:   &esp.Error{Kind: esp.KindWorkerPanic, Operation: "status", Detail: fmt.Sprint(r)},
					stack: debug.Stack(),
				}
			}
			res.took = time.Since(t0)
			p.done <- res
		}()
		res.statuses, res.err = f.Status(ctx)
	}()
	return p
}

// poll returns the result if the worker has finished. It never blocks.
func (p *pending) poll() (fetchResult, bool) {
	select {
	case r := <-p.done:
		return r, true
	default:
		return fetchResult{}, false
	}
}
