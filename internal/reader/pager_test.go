package reader

import (
	"context"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

func startPager(t *testing.T, svc *Service, opts ...PagerOption) *Pager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPager(svc, opts...)
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func TestPagerLoad(t *testing.T) {
	svc := newTestService(t)
	p := startPager(t, svc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	page, err := p.Load(ctx, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if page.Title != "Genesis 1" || len(page.Verses) != 2 || page.Book != 0 || page.Chapter != 0 {
		t.Errorf("page = %+v", page)
	}

	again, err := p.Load(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if again.Slot != page.Slot {
		t.Errorf("reload used slot %d, want %d", again.Slot, page.Slot)
	}

	johnPos, err := svc.Layout().Flatten(42, 0)
	if err != nil {
		t.Fatal(err)
	}
	john, err := p.Load(ctx, johnPos)
	if err != nil {
		t.Fatal(err)
	}
	if john.Position != johnPos || john.Title != "John 1" {
		t.Errorf("john page = %+v", john)
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Slots != 1 || stats.InUse != 0 {
		t.Errorf("stats = %+v, want one free slot", stats)
	}
}

func TestPagerErrors(t *testing.T) {
	svc := newTestService(t)
	p := startPager(t, svc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := p.Load(ctx, svc.Layout().TotalChapterCount()); !errors.Is(err, errors.ErrOutOfRange) {
		t.Errorf("out of range error = %v", err)
	}

	// Exodus 1 has no verses in the test translation.
	if _, err := p.Load(ctx, 50); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("empty chapter error = %v, want ErrNotFound", err)
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.InUse != 0 {
		t.Errorf("InUse = %d after failed load", stats.InUse)
	}
}

func TestPagerClosed(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPager(svc)
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if _, err := p.Load(context.Background(), 0); err != ErrPagerClosed {
		t.Errorf("error = %v, want ErrPagerClosed", err)
	}
}

// gatedLoader holds fetches of gated chapters until their gate is closed.
type gatedLoader struct {
	svc     *Service
	started chan [2]int
	gates   map[[2]int]chan struct{}
}

func newGatedLoader(svc *Service, chapters ...[2]int) *gatedLoader {
	g := &gatedLoader{
		svc:     svc,
		started: make(chan [2]int, 16),
		gates:   make(map[[2]int]chan struct{}),
	}
	for _, c := range chapters {
		g.gates[c] = make(chan struct{})
	}
	return g
}

func (g *gatedLoader) load(ctx context.Context, book, chapter int) ([]string, error) {
	key := [2]int{book, chapter}
	g.started <- key
	if gate, ok := g.gates[key]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.svc.ChapterVerses(ctx, book, chapter)
}

func (g *gatedLoader) expectStart(t *testing.T, want [2]int) {
	t.Helper()
	select {
	case got := <-g.started:
		if got != want {
			t.Fatalf("fetch started for %v, want %v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no fetch started for %v", want)
	}
}

type loadResult struct {
	page Page
	err  error
}

func loadAsync(ctx context.Context, p *Pager, position int) <-chan loadResult {
	out := make(chan loadResult, 1)
	go func() {
		page, err := p.Load(ctx, position)
		out <- loadResult{page, err}
	}()
	return out
}

func awaitLoad(t *testing.T, ch <-chan loadResult) loadResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("Load did not return")
		return loadResult{}
	}
}

func waiterCount(t *testing.T, p *Pager) int {
	t.Helper()
	n := 0
	done := make(chan struct{})
	if err := p.do(context.Background(), func() {
		for _, ws := range p.waiters {
			n += len(ws)
		}
		close(done)
	}); err != nil {
		t.Fatal(err)
	}
	<-done
	return n
}

func waitStale(t *testing.T, p *Pager, want int) PagerStats {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err := p.Stats(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if stats.Stale == want {
			return stats
		}
		if time.Now().After(deadline) {
			t.Fatalf("Stale = %d, want %d", stats.Stale, want)
		}
		time.Sleep(time.Millisecond)
	}
}

var (
	genesis1 = [2]int{0, 0}
	johnCh1  = [2]int{42, 0}
)

func TestPagerLoadCancelled(t *testing.T) {
	svc := newTestService(t)
	g := newGatedLoader(svc, genesis1)
	p := startPager(t, svc, WithChapterLoader(g.load))

	ctx, cancel := context.WithCancel(context.Background())
	pending := loadAsync(ctx, p, 0)
	g.expectStart(t, genesis1)
	if n := waiterCount(t, p); n != 1 {
		t.Fatalf("waiters = %d while loading, want 1", n)
	}

	cancel()
	if res := awaitLoad(t, pending); !errors.Is(res.err, context.Canceled) {
		t.Fatalf("cancelled Load error = %v, want context.Canceled", res.err)
	}
	if n := waiterCount(t, p); n != 0 {
		t.Errorf("waiters = %d after cancel, want 0", n)
	}

	// The late delivery finds its slot released and is dropped.
	close(g.gates[genesis1])
	stats := waitStale(t, p, 1)
	if stats.Slots != 1 || stats.InUse != 0 {
		t.Errorf("stats = %+v", stats)
	}

	page, err := p.Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load after cancel: %v", err)
	}
	if page.Title != "Genesis 1" || len(page.Verses) != 2 || page.Slot != 0 {
		t.Errorf("page = %+v", page)
	}
}

func TestPagerStaleDeliveryAfterRebind(t *testing.T) {
	svc := newTestService(t)
	g := newGatedLoader(svc, genesis1, johnCh1)
	p := startPager(t, svc, WithChapterLoader(g.load))

	ctx, cancel := context.WithCancel(context.Background())
	pending := loadAsync(ctx, p, 0)
	g.expectStart(t, genesis1)
	cancel()
	awaitLoad(t, pending)

	johnPos, err := svc.Layout().Flatten(johnCh1[0], johnCh1[1])
	if err != nil {
		t.Fatal(err)
	}
	john := loadAsync(context.Background(), p, johnPos)
	g.expectStart(t, johnCh1)

	// Genesis arrives while the only slot is bound to John.
	close(g.gates[genesis1])
	waitStale(t, p, 1)
	select {
	case res := <-john:
		t.Fatalf("John answered by the Genesis delivery: %+v", res)
	default:
	}

	close(g.gates[johnCh1])
	res := awaitLoad(t, john)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.page.Title != "John 1" || res.page.Position != johnPos || res.page.Slot != 0 {
		t.Errorf("page = %+v", res.page)
	}
	if len(res.page.Verses) != 2 || res.page.Verses[0] != "In the beginning was the Word, and the Word was with God." {
		t.Errorf("verses = %q", res.page.Verses)
	}

	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Slots != 1 || stats.InUse != 0 || stats.Stale != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPagerConcurrentLoadsSameChapter(t *testing.T) {
	svc := newTestService(t)
	g := newGatedLoader(svc, genesis1)
	p := startPager(t, svc, WithChapterLoader(g.load))

	first := loadAsync(context.Background(), p, 0)
	g.expectStart(t, genesis1)
	second := loadAsync(context.Background(), p, 0)
	g.expectStart(t, genesis1)

	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Slots != 2 || stats.InUse != 2 {
		t.Errorf("stats while loading = %+v, want two busy slots", stats)
	}

	close(g.gates[genesis1])
	a, b := awaitLoad(t, first), awaitLoad(t, second)
	for _, res := range []loadResult{a, b} {
		if res.err != nil {
			t.Fatal(res.err)
		}
		if res.page.Title != "Genesis 1" || len(res.page.Verses) != 2 {
			t.Errorf("page = %+v", res.page)
		}
	}
	if a.page.Slot == b.page.Slot {
		t.Errorf("both loads used slot %d", a.page.Slot)
	}

	stats, err = p.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Slots != 2 || stats.InUse != 0 || stats.Stale != 0 {
		t.Errorf("stats = %+v", stats)
	}
}
