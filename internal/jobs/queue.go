package jobs

import "container/list"

// tieredQueue is FIFO within a priority tier, higher tiers first.
// Elements are indexed by job id so cancellation is O(1).
type tieredQueue struct {
	tiers [PriorityHigh + 1]*list.List
	index map[string]*list.Element
}

func newTieredQueue() *tieredQueue {
	q := &tieredQueue{index: make(map[string]*list.Element)}
	for i := range q.tiers {
		q.tiers[i] = list.New()
	}
	return q
}

func (q *tieredQueue) tier(p Priority) *list.List {
	if p < PriorityLow || p > PriorityHigh {
		p = PriorityNormal
	}
	return q.tiers[p]
}

func (q *tieredQueue) pushBack(j *Job) {
	q.index[j.ID] = q.tier(j.Priority).PushBack(j)
}

func (q *tieredQueue) pushFront(j *Job) {
	q.index[j.ID] = q.tier(j.Priority).PushFront(j)
}

func (q *tieredQueue) pop() *Job {
	for p := PriorityHigh; p >= PriorityLow; p-- {
		l := q.tiers[p]
		if e := l.Front(); e != nil {
			j := l.Remove(e).(*Job)
			delete(q.index, j.ID)
			return j
		}
	}
	return nil
}

func (q *tieredQueue) remove(id string) bool {
	e, ok := q.index[id]
	if !ok {
		return false
	}
	j := e.Value.(*Job)
	q.tier(j.Priority).Remove(e)
	delete(q.index, id)
	return true
}

func (q *tieredQueue) len() int { return len(q.index) }
