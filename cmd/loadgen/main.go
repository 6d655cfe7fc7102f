// Command loadgen drives a canvas server with simulated participants. Each
// participant connects over websocket, draws random strokes at a pointer-like
// cadence, and reports its mirrored stroke count at the end, which should
// match across all participants once traffic settles.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"sketchboard/internal/client"
	"sketchboard/internal/model"
)

var (
	addr     = flag.String("addr", "localhost:8080", "canvas server host:port")
	clients  = flag.Int("clients", 4, "number of simulated participants")
	strokes  = flag.Int("strokes", 10, "strokes drawn per participant")
	points   = flag.Int("points", 50, "points per stroke")
	erasers  = flag.Bool("erase", false, "also run eraser passes between strokes")
	duration = flag.Duration("settle", 2*time.Second, "settle time after drawing before the final count")
)

var palette = []string{"#000", "#e74c3c", "#2980b9", "#27ae60", "#f39c12"}

func main() {
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/canvas"}
	log.Printf("[Loadgen] %d participants against %s", *clients, u.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var wg sync.WaitGroup
	counts := make([]int, *clients)

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			count, err := runParticipant(ctx, u.String(), n)
			if err != nil {
				log.Printf("[Loadgen] participant %d: %v", n, err)
				counts[n] = -1
				return
			}
			counts[n] = count
		}(i)
	}
	wg.Wait()

	converged := true
	for i := 1; i < len(counts); i++ {
		if counts[i] != counts[0] {
			converged = false
		}
	}
	log.Printf("[Loadgen] final mirrored stroke counts: %v (converged: %v)", counts, converged)
}

func runParticipant(ctx context.Context, wsURL string, n int) (int, error) {
	p, err := client.Dial(ctx, wsURL, client.Options{})
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer p.Close()

	if err := p.WaitSynced(ctx); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(n)))

	for s := 0; s < *strokes; s++ {
		color := palette[rng.Intn(len(palette))]
		width := 1 + rng.Float64()*6
		if _, err := p.BeginStroke(model.ToolBrush, color, width); err != nil {
			return 0, fmt.Errorf("begin stroke: %w", err)
		}

		x, y := rng.Float64()*800, rng.Float64()*600
		for i := 0; i < *points; i++ {
			x += rng.Float64()*8 - 4
			y += rng.Float64()*8 - 4
			p.MovePoint(model.Point{X: x, Y: y})
			time.Sleep(4 * time.Millisecond)
		}
		if err := p.EndStroke(); err != nil {
			return 0, fmt.Errorf("end stroke: %w", err)
		}

		if *erasers && s%3 == 2 {
			center := model.Point{X: rng.Float64() * 800, Y: rng.Float64() * 600}
			if _, err := p.Erase(center, 10); err != nil {
				return 0, fmt.Errorf("erase: %w", err)
			}
		}
	}

	// Let in-flight batches and other participants' traffic land.
	select {
	case <-time.After(*duration):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	return len(p.Mirror().Strokes()), nil
}
