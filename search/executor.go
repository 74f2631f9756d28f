package search

import (
	"context"
	"time"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/config"
	"github.com/sanchitsharma77/airweave-sub002/destination"
)

// defaultOpBudget is the per-operation time budget when none is configured.
const defaultOpBudget = 20 * time.Second

// Executor runs the search operation graph against a collection's active
// destination.
type Executor struct {
	defaults *config.SearchDefaults
	tokens   TokenCounter
	embedder QueryEmbedder
	llm      LLM
	budgets  map[string]time.Duration
	logger   *common.ContextLogger
}

// NewExecutor creates a search executor. llm may be nil, which disables the
// LLM-backed operations regardless of the request flags.
func NewExecutor(defaults *config.SearchDefaults, tokens TokenCounter, embedder QueryEmbedder, llm LLM, logger *common.ContextLogger) *Executor {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "search"})
	}
	return &Executor{
		defaults: defaults,
		tokens:   tokens,
		embedder: embedder,
		llm:      llm,
		budgets:  map[string]time.Duration{},
		logger:   logger,
	}
}

// WithBudget overrides one operation's time budget.
func (x *Executor) WithBudget(operation string, budget time.Duration) *Executor {
	x.budgets[operation] = budget
	return x
}

// Search runs the pipeline and returns the final response.
func (x *Executor) Search(ctx context.Context, req Request, dest destination.Destination) (*Response, error) {
	return x.run(ctx, req, dest, nil)
}

// SearchStream runs the pipeline, emitting named events on events. The
// channel is closed when the search finishes.
func (x *Executor) SearchStream(ctx context.Context, req Request, dest destination.Destination, events chan<- Event) (*Response, error) {
	defer close(events)
	return x.run(ctx, req, dest, events)
}

func (x *Executor) run(ctx context.Context, req Request, dest destination.Destination, events chan<- Event) (*Response, error) {
	req.ApplyDefaults(x.defaults)
	if err := req.Validate(x.tokens); err != nil {
		return nil, err
	}

	state := &State{
		Request: req,
		Queries: []string{req.Query},
	}

	for _, op := range x.plan(req, dest) {
		emit(events, Event{Type: EventOperationStarted, Operation: op.Name()})

		budget, ok := x.budgets[op.Name()]
		if !ok {
			budget = defaultOpBudget
		}
		opCtx, cancel := context.WithTimeout(ctx, budget)
		err := op.Run(opCtx, state)
		cancel()

		if err != nil {
			if op.Mandatory() {
				emit(events, Event{Type: EventOperationFailed, Operation: op.Name(), Error: err.Error()})
				return nil, err
			}
			// Optional operations fall back to the prior state.
			x.logger.WithField("operation", op.Name()).WithError(err).
				Warn("optional search operation failed, continuing")
			emit(events, Event{Type: EventOperationFailed, Operation: op.Name(), Error: err.Error()})
			continue
		}
		emit(events, Event{Type: EventOperationCompleted, Operation: op.Name()})

		if op.Name() == "retrieval" {
			emit(events, Event{Type: EventResults, Data: state.Results})
		}
	}

	if state.Answer != "" {
		emit(events, Event{Type: EventAnswer, Data: state.Answer})
	}
	emit(events, Event{Type: EventDone})

	response := &Response{
		Results:       state.Results,
		Answer:        state.Answer,
		AppliedFilter: state.Filter,
	}
	if len(state.Queries) > 1 {
		response.ExpandedQueries = state.Queries[1:]
	}
	return response, nil
}

// plan assembles the operation list for one request. Embed and retrieval are
// always present; the LLM operations depend on the request flags and an
// available model.
func (x *Executor) plan(req Request, dest destination.Destination) []Operation {
	var ops []Operation
	if x.llm != nil && req.ExpandQuery != nil && *req.ExpandQuery {
		ops = append(ops, NewQueryExpansion(x.llm))
	}
	if x.llm != nil && req.InterpretFilters != nil && *req.InterpretFilters {
		ops = append(ops, NewQueryInterpretation(x.llm))
	}
	withSparse := dest.HasKeywordIndex() && req.RetrievalStrategy != destination.StrategyNeural
	ops = append(ops,
		NewEmbed(x.embedder, withSparse),
		UserFilter{},
		NewRetrieval(dest),
	)
	if x.llm != nil && req.Rerank != nil && *req.Rerank {
		ops = append(ops, NewRerank(x.llm))
	}
	if x.llm != nil && req.GenerateAnswer != nil && *req.GenerateAnswer {
		ops = append(ops, NewAnswer(x.llm))
	}
	return ops
}

func emit(events chan<- Event, event Event) {
	if events == nil {
		return
	}
	events <- event
}
