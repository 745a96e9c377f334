package aoi

// PendingKind вид отложенного сообщения
type PendingKind uint8

const (
	PendingProperties PendingKind = iota // полный набор свойств
	PendingProperty                      // одно свойство по messageID
	PendingMethod
)

func (k PendingKind) String() string {
	switch k {
	case PendingProperties:
		return "properties"
	case PendingProperty:
		return "property"
	case PendingMethod:
		return "method"
	default:
		return "unknown"
	}
}

// PendingMessage сообщение для ещё не допущенной в мир сущности
type PendingMessage struct {
	EntityID  EntityID
	Kind      PendingKind
	MessageID uint16
	Payload   []byte
}

// PendingMessageQueue одна FIFO очередь на id: свойства и методы
// лежат вместе, чтобы сохранить их относительный порядок.
type PendingMessageQueue struct {
	queues map[EntityID][]PendingMessage
	total  int
}

func newPendingMessageQueue() *PendingMessageQueue {
	return &PendingMessageQueue{queues: make(map[EntityID][]PendingMessage)}
}

// Push добавляет сообщение; payload копируется, очередь владеет буфером
func (q *PendingMessageQueue) Push(msg PendingMessage) {
	owned := make([]byte, len(msg.Payload))
	copy(owned, msg.Payload)
	msg.Payload = owned
	q.queues[msg.EntityID] = append(q.queues[msg.EntityID], msg)
	q.total++
}

// Take забирает очередь id целиком в порядке поступления
func (q *PendingMessageQueue) Take(id EntityID) []PendingMessage {
	msgs, ok := q.queues[id]
	if !ok {
		return nil
	}
	delete(q.queues, id)
	q.total -= len(msgs)
	return msgs
}

// Discard выбрасывает очередь id, возвращает число выброшенных сообщений
func (q *PendingMessageQueue) Discard(id EntityID) int {
	return len(q.Take(id))
}

// Clear выбрасывает все очереди
func (q *PendingMessageQueue) Clear() int {
	n := q.total
	q.queues = make(map[EntityID][]PendingMessage)
	q.total = 0
	return n
}

// LenFor число сообщений, ожидающих id
func (q *PendingMessageQueue) LenFor(id EntityID) int { return len(q.queues[id]) }

// Len общее число сообщений
func (q *PendingMessageQueue) Len() int { return q.total }
