package scheduler

import "github.com/law-makers/pagegraph-crawl/pkg/models"

// Queue is a fixed FIFO of tasks shared by all workers. Every task is
// handed to exactly one caller of TryDequeue.
type Queue struct {
	ch chan models.CrawlTask
}

// NewQueue fills a queue with tasks in order. No task can be added later.
func NewQueue(tasks []models.CrawlTask) *Queue {
	ch := make(chan models.CrawlTask, len(tasks))
	for _, t := range tasks {
		ch <- t
	}
	close(ch)
	return &Queue{ch: ch}
}

// TryDequeue removes and returns the head. It never blocks and reports
// false once the queue is empty.
func (q *Queue) TryDequeue() (models.CrawlTask, bool) {
	t, ok := <-q.ch
	return t, ok
}

// Len is the number of tasks not yet claimed.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Drain claims every remaining task.
func (q *Queue) Drain() []models.CrawlTask {
	var out []models.CrawlTask
	for t := range q.ch {
		out = append(out, t)
	}
	return out
}
