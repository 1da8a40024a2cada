package reader

import (
	"context"
	stderrors "errors"

	"github.com/FocuswithJustin/JuniperReader/core/slots"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// ErrPagerClosed is returned once the pager loop has stopped.
var ErrPagerClosed = stderrors.New("reader: pager closed")

// Page is the content of one chapter as served from a pool slot.
type Page struct {
	Position int      `json:"position"`
	Book     int      `json:"book"`
	Chapter  int      `json:"chapter"`
	Title    string   `json:"title"`
	Verses   []string `json:"verses"`
	Slot     int      `json:"slot"`
}

// PagerStats describes the slot pool.
type PagerStats struct {
	Slots int `json:"slots"`
	InUse int `json:"in_use"`

	// Stale counts deliveries dropped because their slot had been released
	// or rebound before the content arrived.
	Stale int `json:"stale"`
}

// ChapterLoader fetches the verse texts of one chapter.
type ChapterLoader func(ctx context.Context, book, chapter int) ([]string, error)

type chapterSlot = *slots.Slot[[]string]

type waiter struct {
	book, chapter int
	reply         chan pageResult
}

type pageResult struct {
	page Page
	err  error
}

// Pager serves chapter pages through a slots.Pool. The pool is owned by the
// goroutine running Run; every other call hands it a closure.
type Pager struct {
	svc   *Service
	pool  *slots.Pool[[]string]
	fetch ChapterLoader
	cmds  chan func()
	done  chan struct{}

	// Only touched by the Run goroutine.
	ctx     context.Context
	waiters map[chapterSlot][]waiter
	loading map[chapterSlot][2]int
	stale   int
}

// PagerOption configures a Pager.
type PagerOption func(*Pager)

// WithChapterLoader replaces Service.ChapterVerses as the content source.
func WithChapterLoader(fn ChapterLoader) PagerOption {
	return func(p *Pager) { p.fetch = fn }
}

// NewPager returns a pager over svc. Call Run before using it.
func NewPager(svc *Service, opts ...PagerOption) *Pager {
	p := &Pager{
		svc:     svc,
		pool:    slots.NewPool[[]string](svc.Layout()),
		fetch:   svc.ChapterVerses,
		cmds:    make(chan func()),
		done:    make(chan struct{}),
		waiters: make(map[chapterSlot][]waiter),
		loading: make(map[chapterSlot][2]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run owns the pool until ctx is done.
func (p *Pager) Run(ctx context.Context) error {
	p.ctx = ctx
	defer close(p.done)
	for {
		select {
		case fn := <-p.cmds:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pager) do(ctx context.Context, fn func()) error {
	select {
	case p.cmds <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPagerClosed
	}
}

// Load returns the chapter at a flat position, waiting for its content if
// the slot it landed in is still loading. The slot is released before
// Load returns.
func (p *Pager) Load(ctx context.Context, position int) (Page, error) {
	book, chapter, err := p.svc.Layout().Unflatten(position)
	if err != nil {
		return Page{}, err
	}

	reply := make(chan pageResult, 1)
	var slot chapterSlot
	err = p.do(ctx, func() {
		slot = p.pool.Acquire(book, chapter)
		if slot.State() == slots.Ready {
			reply <- pageResult{page: p.page(slot)}
			return
		}
		p.waiters[slot] = append(p.waiters[slot], waiter{book: book, chapter: chapter, reply: reply})
		p.startLoad(slot, book, chapter)
	})
	if err != nil {
		return Page{}, err
	}

	var res pageResult
	select {
	case res = <-reply:
	case <-ctx.Done():
		res.err = ctx.Err()
	case <-p.done:
		return Page{}, ErrPagerClosed
	}

	release := func() {
		p.dropWaiter(slot, reply)
		p.pool.Release(slot)
	}
	if err := p.do(context.Background(), release); err != nil && res.err == nil {
		res.err = err
	}
	return res.page, res.err
}

// Stats reports the pool size.
func (p *Pager) Stats(ctx context.Context) (PagerStats, error) {
	var st PagerStats
	reply := make(chan struct{})
	err := p.do(ctx, func() {
		st = PagerStats{Slots: p.pool.Len(), InUse: p.pool.InUse(), Stale: p.stale}
		close(reply)
	})
	if err != nil {
		return PagerStats{}, err
	}
	<-reply
	return st, nil
}

// startLoad fetches content for slot unless a fetch for the same binding
// is already running. Runs on the pool goroutine.
func (p *Pager) startLoad(slot chapterSlot, book, chapter int) {
	key := [2]int{book, chapter}
	if cur, ok := p.loading[slot]; ok && cur == key {
		return
	}
	p.loading[slot] = key
	ctx := p.ctx
	go func() {
		verses, err := p.fetch(ctx, book, chapter)
		deliver := func() {
			if p.loading[slot] == key {
				delete(p.loading, slot)
			}
			if err == nil && !slot.Fill(book, chapter, verses) {
				// Slot was released or rebound; a new binding has its own fetch.
				p.stale++
				logging.Debug("pager: dropped stale delivery", "slot", slot.ID(), "book", book, "chapter", chapter)
				return
			}
			p.notify(slot, book, chapter, err)
		}
		select {
		case p.cmds <- deliver:
		case <-p.done:
		}
	}()
}

// notify answers every waiter bound to (book, chapter) on slot.
func (p *Pager) notify(slot chapterSlot, book, chapter int, err error) {
	kept := p.waiters[slot][:0]
	for _, w := range p.waiters[slot] {
		if w.book != book || w.chapter != chapter {
			kept = append(kept, w)
			continue
		}
		if err != nil {
			w.reply <- pageResult{err: err}
		} else {
			w.reply <- pageResult{page: p.page(slot)}
		}
	}
	if len(kept) == 0 {
		delete(p.waiters, slot)
	} else {
		p.waiters[slot] = kept
	}
}

func (p *Pager) dropWaiter(slot chapterSlot, reply chan pageResult) {
	ws := p.waiters[slot]
	for i, w := range ws {
		if w.reply == reply {
			p.waiters[slot] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(p.waiters[slot]) == 0 {
		delete(p.waiters, slot)
	}
}

func (p *Pager) page(slot chapterSlot) Page {
	pos, _ := p.pool.PositionOf(slot)
	return Page{
		Position: pos,
		Book:     slot.Book(),
		Chapter:  slot.Chapter(),
		Title:    p.svc.ChapterTitle(slot.Book(), slot.Chapter()),
		Verses:   slot.Payload(),
		Slot:     slot.ID(),
	}
}
