// Package background runs knowledge-base ingestion jobs off the request
// path with a bounded worker pool, grounded on
// Planning/planning/hiplan.go's executeParallelMilestones semaphore +
// WaitGroup pattern (simplified here to a single fixed-size pool, since
// ingestion jobs carry no cross-job dependency graph — see DESIGN.md).
package background

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/eventbus"
	"dev.helix.agent/internal/logging"
	"dev.helix.agent/internal/retrieval"
)

// MaxConcurrentIngests bounds how many documents are chunked/embedded at
// once, keeping large knowledge-base uploads from starving the request
// path's own goroutines.
const MaxConcurrentIngests = 4

// Pool consumes eventbus.IngestJob values and runs them through a shared
// retrieval.Index, bounded by a semaphore sized MaxConcurrentIngests.
type Pool struct {
	index  *retrieval.Index
	logger *logrus.Logger
	sem    chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	errs []jobError
}

type jobError struct {
	job eventbus.IngestJob
	err error
}

// New builds an ingestion pool bounded to MaxConcurrentIngests concurrent jobs.
func New(index *retrieval.Index, logger *logrus.Logger) *Pool {
	return &Pool{
		index:  index,
		logger: logging.OrDefault(logger),
		sem:    make(chan struct{}, MaxConcurrentIngests),
	}
}

// Submit runs job asynchronously, blocking only until a pool slot frees up
// (not until the job completes). Call Wait before shutdown to drain it.
func (p *Pool) Submit(ctx context.Context, job eventbus.IngestJob) {
	p.wg.Add(1)
	p.sem <- struct{}{}

	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.run(ctx, job)
	}()
}

func (p *Pool) run(ctx context.Context, job eventbus.IngestJob) {
	scope := domain.ScopeUserDocs
	if job.KB {
		scope = domain.ScopeKB
	}
	collection := retrieval.CollectionName(string(scope), job.SessionID)

	opts := retrieval.IngestOptions{DocID: job.DocID, Filename: job.Filename, FileType: job.FileType}
	if err := p.index.Ingest(ctx, collection, job.Content, opts); err != nil {
		p.logger.WithError(err).WithField("doc_id", job.DocID).Warn("background ingestion failed")
		p.recordError(job, err)
	}
}

func (p *Pool) recordError(job eventbus.IngestJob, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, jobError{job: job, err: err})
}

// Errors returns every job that failed since the pool was created, for
// surfacing to an operator or health endpoint.
func (p *Pool) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]error, 0, len(p.errs))
	for _, je := range p.errs {
		if je.err != nil {
			out = append(out, je.err)
		}
	}
	return out
}

// Wait blocks until every submitted job has completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}
