package detect

import (
	"image"
	"sync"

	"github.com/riverbell/mapler/internal/game"
)

// Cached wraps a Detector and memoizes results for the lifetime of one
// frame. The tick driver builds one Cached per captured frame; every fold in
// that tick shares it, and detection tasks clone it so workers keep an owned
// reference while the driver moves on.
//
// Cloning is cheap: clones share the inner detector, the frame and the
// memoization tables.
type Cached struct {
	inner Detector
	cache *callCache
}

type callCache struct {
	mu      sync.Mutex
	results map[cacheKey]cacheEntry
}

type cacheKey struct {
	op   string
	rect image.Rectangle
	arg  int
}

type cacheEntry struct {
	rect  image.Rectangle
	rect2 image.Rectangle
	rects []image.Rectangle
	ok    bool
	n1    int
	n2    int
	err   error
}

func NewCached(inner Detector) *Cached {
	return &Cached{
		inner: inner,
		cache: &callCache{results: make(map[cacheKey]cacheEntry)},
	}
}

// Clone returns a detector sharing this one's frame and caches.
func (c *Cached) Clone() *Cached {
	return &Cached{inner: c.inner, cache: c.cache}
}

func (c *Cached) Frame() *game.Frame {
	return c.inner.Frame()
}

func (c *Cached) memo(key cacheKey, fn func() cacheEntry) cacheEntry {
	c.cache.mu.Lock()
	if entry, ok := c.cache.results[key]; ok {
		c.cache.mu.Unlock()
		return entry
	}
	c.cache.mu.Unlock()

	// The inner call runs outside the lock; vision work can be slow and
	// other operations must not queue behind it.
	entry := fn()

	c.cache.mu.Lock()
	c.cache.results[key] = entry
	c.cache.mu.Unlock()
	return entry
}

func (c *Cached) DetectMinimap(whiteness uint8) (image.Rectangle, error) {
	entry := c.memo(cacheKey{op: "minimap", arg: int(whiteness)}, func() cacheEntry {
		r, err := c.inner.DetectMinimap(whiteness)
		return cacheEntry{rect: r, err: err}
	})
	return entry.rect, entry.err
}

func (c *Cached) DetectMinimapRune(minimap image.Rectangle) (image.Rectangle, error) {
	entry := c.memo(cacheKey{op: "rune", rect: minimap}, func() cacheEntry {
		r, err := c.inner.DetectMinimapRune(minimap)
		return cacheEntry{rect: r, err: err}
	})
	return entry.rect, entry.err
}

func (c *Cached) DetectMinimapPortals(minimap image.Rectangle) ([]image.Rectangle, error) {
	entry := c.memo(cacheKey{op: "portals", rect: minimap}, func() cacheEntry {
		rs, err := c.inner.DetectMinimapPortals(minimap)
		return cacheEntry{rects: rs, err: err}
	})
	return entry.rects, entry.err
}

func (c *Cached) DetectPlayer(minimap image.Rectangle) (image.Rectangle, error) {
	entry := c.memo(cacheKey{op: "player", rect: minimap}, func() cacheEntry {
		r, err := c.inner.DetectPlayer(minimap)
		return cacheEntry{rect: r, err: err}
	})
	return entry.rect, entry.err
}

func (c *Cached) DetectPlayerKind(minimap image.Rectangle, kind OtherPlayerKind) (bool, error) {
	entry := c.memo(cacheKey{op: "playerkind", rect: minimap, arg: int(kind)}, func() cacheEntry {
		ok, err := c.inner.DetectPlayerKind(minimap, kind)
		return cacheEntry{ok: ok, err: err}
	})
	return entry.ok, entry.err
}

func (c *Cached) DetectPlayerHealthBar() (image.Rectangle, error) {
	entry := c.memo(cacheKey{op: "healthbar"}, func() cacheEntry {
		r, err := c.inner.DetectPlayerHealthBar()
		return cacheEntry{rect: r, err: err}
	})
	return entry.rect, entry.err
}

func (c *Cached) DetectPlayerCurrentMaxHealthBars(bar image.Rectangle) (image.Rectangle, image.Rectangle, error) {
	entry := c.memo(cacheKey{op: "healthbars", rect: bar}, func() cacheEntry {
		cur, max, err := c.inner.DetectPlayerCurrentMaxHealthBars(bar)
		return cacheEntry{rect: cur, rect2: max, err: err}
	})
	return entry.rect, entry.rect2, entry.err
}

func (c *Cached) DetectPlayerHealth(current, max image.Rectangle) (int, int, error) {
	entry := c.memo(cacheKey{op: "health", rect: current.Union(max)}, func() cacheEntry {
		cur, m, err := c.inner.DetectPlayerHealth(current, max)
		return cacheEntry{n1: cur, n2: m, err: err}
	})
	return entry.n1, entry.n2, entry.err
}

func (c *Cached) DetectPlayerIsDead() (bool, error) {
	entry := c.memo(cacheKey{op: "dead"}, func() cacheEntry {
		ok, err := c.inner.DetectPlayerIsDead()
		return cacheEntry{ok: ok, err: err}
	})
	return entry.ok, entry.err
}

func (c *Cached) DetectTombOKButton() (image.Rectangle, error) {
	entry := c.memo(cacheKey{op: "tombok"}, func() cacheEntry {
		r, err := c.inner.DetectTombOKButton()
		return cacheEntry{rect: r, err: err}
	})
	return entry.rect, entry.err
}

func (c *Cached) DetectEliteBossBar() (bool, error) {
	entry := c.memo(cacheKey{op: "eliteboss"}, func() cacheEntry {
		ok, err := c.inner.DetectEliteBossBar()
		return cacheEntry{ok: ok, err: err}
	})
	return entry.ok, entry.err
}

func (c *Cached) DetectArrowSpamOpen() (bool, error) {
	entry := c.memo(cacheKey{op: "arrowspam"}, func() cacheEntry {
		ok, err := c.inner.DetectArrowSpamOpen()
		return cacheEntry{ok: ok, err: err}
	})
	return entry.ok, entry.err
}

func (c *Cached) DetectPlayerBuff(kind BuffKind) (bool, error) {
	entry := c.memo(cacheKey{op: "buff", arg: int(kind)}, func() cacheEntry {
		ok, err := c.inner.DetectPlayerBuff(kind)
		return cacheEntry{ok: ok, err: err}
	})
	return entry.ok, entry.err
}

func (c *Cached) DetectSkillOffCooldown(kind SkillKind) (bool, error) {
	entry := c.memo(cacheKey{op: "skill", arg: int(kind)}, func() cacheEntry {
		ok, err := c.inner.DetectSkillOffCooldown(kind)
		return cacheEntry{ok: ok, err: err}
	})
	return entry.ok, entry.err
}
