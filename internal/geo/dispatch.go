package geo

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/world"
)

// Dispatcher исполняет задачи построения геометрии, ключом служит позиция кластера.
// Dispatch возвращает false, если задача не принята и не будет выполнена.
type Dispatcher interface {
	Dispatch(key world.ClusterPos, job func()) bool
}

// InlineDispatcher выполняет задачу сразу в вызывающей горутине
type InlineDispatcher struct{}

// Dispatch выполняет задачу синхронно
func (InlineDispatcher) Dispatch(_ world.ClusterPos, job func()) bool {
	job()
	return true
}

type poolTask struct {
	key world.ClusterPos
	job func()
}

// WorkerPoolStats содержит статистику пула
type WorkerPoolStats struct {
	Submitted  uint64
	Completed  uint64
	Duplicates uint64
	Queued     int
}

// WorkerPool — пул воркеров с неограниченной FIFO-очередью.
// Dispatch никогда не блокируется и не теряет задачи; задача с ключом,
// который уже стоит в очереди, отбрасывается как дубликат. Задача, которая
// уже исполняется, дубликатом не считается: её результат мог устареть.
type WorkerPool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []poolTask
	queued map[world.ClusterPos]struct{}
	closed bool

	workerCount int
	wg          sync.WaitGroup // WaitGroup для воркеров
	log         *logging.Logger

	submitted  atomic.Uint64
	completed  atomic.Uint64
	duplicates atomic.Uint64
}

// NewWorkerPool создаёт пул и запускает воркеров. workers ≤ 0 означает число CPU.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &WorkerPool{
		queued:      make(map[world.ClusterPos]struct{}),
		workerCount: workers,
		log:         logging.GetGeoLogger(),
	}
	p.cond = sync.NewCond(&p.mu)

	// Запускаем воркеров
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Debug("🧵 Пул построения геометрии запущен: %d воркеров", workers)
	return p
}

// Dispatch ставит задачу в очередь. Дубликат поставленной задачи считается принятым.
// После Close задачи не принимаются и Dispatch возвращает false.
func (p *WorkerPool) Dispatch(key world.ClusterPos, job func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if _, dup := p.queued[key]; dup {
		p.duplicates.Add(1)
		return true
	}

	p.queued[key] = struct{}{}
	p.queue = append(p.queue, poolTask{key: key, job: job})
	p.submitted.Add(1)
	p.cond.Signal()
	return true
}

// Close дожидается выполнения всех поставленных задач и останавливает воркеров
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debug("🛑 Пул построения геометрии остановлен, выполнено задач: %d", p.completed.Load())
}

// Stats возвращает статистику пула
func (p *WorkerPool) Stats() WorkerPoolStats {
	p.mu.Lock()
	queued := len(p.queue)
	p.mu.Unlock()

	return WorkerPoolStats{
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Duplicates: p.duplicates.Load(),
		Queued:     queued,
	}
}

// Workers возвращает число воркеров
func (p *WorkerPool) Workers() int {
	return p.workerCount
}

// worker обрабатывает очередь, пока пул не закрыт и очередь не пуста
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = poolTask{}
		p.queue = p.queue[1:]
		delete(p.queued, task.key)
		p.mu.Unlock()

		p.run(id, task)
	}
}

func (p *WorkerPool) run(id int, task poolTask) {
	defer p.completed.Add(1)

	p.log.Trace("Воркер %d: кластер %s", id, task.key)
	task.job()
}
