package signal

import "sync"

// Signal — список подписчиков на события одного типа.
// Рассылка синхронная, в порядке подписки; возвращаемые значения обработчиков не используются.
// Нулевое значение готово к использованию.
type Signal[T any] struct {
	mu     sync.RWMutex
	subs   map[int]func(T)
	order  []int
	nextID int
}

// Subscribe добавляет обработчик и возвращает функцию отписки.
// Повторный вызов функции отписки безопасен.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

// Emit рассылает значение всем текущим подписчикам.
// Подписчики вызываются вне блокировки, поэтому могут подписываться и отписываться из обработчика.
func (s *Signal[T]) Emit(v T) {
	s.mu.RLock()
	if len(s.order) == 0 {
		s.mu.RUnlock()
		return
	}
	handlers := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		handlers = append(handlers, s.subs[id])
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(v)
	}
}

// Len возвращает количество подписчиков
func (s *Signal[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Signal[T]) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[id]; !ok {
		return
	}
	delete(s.subs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
