package cache

import (
	"sync"
)

// Provider hands out one LocalLRUCache for its lifetime. Create it once at
// startup and pass it to whatever needs the cache.
type Provider struct {
	mu       sync.Mutex
	instance *LocalLRUCache
}

// GetInstance returns the provider's cache, constructing it from options on
// the first call. Options passed to later calls are ignored. nil options
// resolve through DefaultOptions.
func (p *Provider) GetInstance(options *LocalOptions) *LocalLRUCache {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.instance == nil {
		if options == nil {
			options = DefaultOptions()
		}
		p.instance = NewLocalLRUCache(options)
		p.instance.logger.Debug("created response cache",
			"max", p.instance.options.Max,
			"maxAge", p.instance.options.MaxAge,
			"updateAgeOnGet", p.instance.options.UpdateAgeOnGet,
		)
	}
	return p.instance
}

var processProvider Provider

// GetInstance returns the process-wide cache. See Provider.GetInstance.
func GetInstance(options *LocalOptions) *LocalLRUCache {
	return processProvider.GetInstance(options)
}
