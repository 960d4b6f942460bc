package replyroute

import "github.com/ergochat/irc-go/ircmsg"

// queuedRequest is a routable client command waiting for its turn.
type queuedRequest struct {
	msg   ircmsg.Message
	rules *RuleSet
}

// pendingQueue holds one FIFO of requests per client.
//
// Clients are served in the order their slot was created; a slot is removed
// as soon as it becomes empty, so a client that drains its slot and queues
// again goes to the back.
type pendingQueue struct {
	order []Client
	slots map[Client][]queuedRequest
	size  int
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		slots: make(map[Client][]queuedRequest),
	}
}

// push appends req to the client's slot, creating the slot if needed.
func (q *pendingQueue) push(client Client, req queuedRequest) {
	if _, ok := q.slots[client]; !ok {
		q.order = append(q.order, client)
	}
	q.slots[client] = append(q.slots[client], req)
	q.size++
}

// pop removes and returns the head request of the earliest slot.
// Empty slots met on the way are pruned.
func (q *pendingQueue) pop() (Client, queuedRequest, bool) {
	for len(q.order) > 0 {
		client := q.order[0]
		reqs := q.slots[client]
		if len(reqs) == 0 {
			q.prune(client)
			continue
		}

		req := reqs[0]
		reqs[0] = queuedRequest{}
		reqs = reqs[1:]
		q.size--

		if len(reqs) == 0 {
			q.prune(client)
		} else {
			q.slots[client] = reqs
		}
		return client, req, true
	}
	return nil, queuedRequest{}, false
}

// remove drops the client's slot and returns how many requests it held.
func (q *pendingQueue) remove(client Client) int {
	reqs, ok := q.slots[client]
	if !ok {
		return 0
	}
	q.prune(client)
	q.size -= len(reqs)
	return len(reqs)
}

// drain calls fn for every queued request in service order and empties the queue.
func (q *pendingQueue) drain(fn func(Client, queuedRequest)) {
	for {
		client, req, ok := q.pop()
		if !ok {
			return
		}
		fn(client, req)
	}
}

// clear drops everything and returns how many requests were discarded.
func (q *pendingQueue) clear() int {
	n := q.size
	q.order = nil
	q.slots = make(map[Client][]queuedRequest)
	q.size = 0
	return n
}

func (q *pendingQueue) len() int {
	return q.size
}

func (q *pendingQueue) clients() int {
	return len(q.order)
}

func (q *pendingQueue) prune(client Client) {
	delete(q.slots, client)
	for i, c := range q.order {
		if c == client {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}
