// Package assets загружает ресурсы сущностей в фоне. Движок AoI опрашивает
// готовность через CheckPrerequisites и держит сущность в шлюзе, пока
// её ресурсы не загружены.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/annel0/aoi-client/internal/logging"
)

type state uint8

const (
	stateLoading state = iota
	stateLoaded
	stateFailed
)

type asset struct {
	state state
	data  []byte
	err   error
}

// Loader асинхронный загрузчик ресурсов с ограничением числа параллельных чтений.
// Пустой root означает, что ресурсы встроены и готовы сразу.
type Loader struct {
	mu     sync.Mutex
	root   string
	assets map[string]*asset
	sem    chan struct{}
	wg     sync.WaitGroup
	read   func(path string) ([]byte, error)
	log    *logging.Logger
}

// NewLoader создаёт загрузчик; workers ограничивает число одновременных чтений
func NewLoader(root string, workers int) *Loader {
	if workers <= 0 {
		workers = 4
	}
	return &Loader{
		root:   root,
		assets: make(map[string]*asset),
		sem:    make(chan struct{}, workers),
		read:   os.ReadFile,
		log:    logging.GetComponentLogger("assets"),
	}
}

// Request запускает загрузку ресурсов, которые ещё не запрошены
func (l *Loader) Request(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, name := range names {
		if _, ok := l.assets[name]; ok {
			continue
		}
		if l.root == "" {
			l.assets[name] = &asset{state: stateLoaded}
			continue
		}
		a := &asset{state: stateLoading}
		l.assets[name] = a
		l.wg.Add(1)
		go l.load(name, a)
	}
}

func (l *Loader) load(name string, a *asset) {
	defer l.wg.Done()
	l.sem <- struct{}{}
	defer func() { <-l.sem }()

	data, err := l.read(filepath.Join(l.root, filepath.FromSlash(name)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		// Сущность не должна ждать вечно: отсутствующий ресурс заменяется заглушкой
		a.state = stateFailed
		a.err = fmt.Errorf("load asset %s: %w", name, err)
		l.log.Error("❌ %v", a.err)
		return
	}
	a.state = stateLoaded
	a.data = data
	l.log.Debug("📦 загружен ресурс %s (%d байт)", name, len(data))
}

// Ready все ресурсы загружены или окончательно не загрузились
func (l *Loader) Ready(names []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range names {
		a, ok := l.assets[name]
		if !ok || a.state == stateLoading {
			return false
		}
	}
	return true
}

// Get данные загруженного ресурса
func (l *Loader) Get(name string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[name]
	if !ok || a.state != stateLoaded {
		return nil, false
	}
	return a.data, true
}

// Err ошибка загрузки ресурса, если она была
func (l *Loader) Err(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.assets[name]; ok {
		return a.err
	}
	return nil
}

// Wait дожидается завершения всех запущенных загрузок
func (l *Loader) Wait() {
	l.wg.Wait()
}
