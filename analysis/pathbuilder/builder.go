// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pathbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/awslabs/argot-paths/analysis/abstraction"
	"github.com/awslabs/argot-paths/analysis/config"
	"github.com/awslabs/argot-paths/analysis/icfg"
	"github.com/awslabs/argot-paths/analysis/results"
	"github.com/awslabs/argot-paths/internal/formatutil"
	"github.com/awslabs/argot-paths/internal/funcutil"
	"github.com/awslabs/argot-paths/internal/taskpool"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PathBuilder reconstructs the connections between the sources and the sinks of a dataflow analysis.
type PathBuilder interface {
	// ComputeTaintSources computes which sources reach the sinks, without reconstructing the paths.
	ComputeTaintSources(ctx context.Context, sinks []abstraction.SinkOccurrence) error

	// ComputeTaintPaths computes which sources reach the sinks, and the statements on the paths between them.
	// Builders that cannot reconstruct paths log a warning and compute the sources only.
	ComputeTaintPaths(ctx context.Context, sinks []abstraction.SinkOccurrence) error

	// Results returns the sink the results are written to.
	Results() results.Sink

	// Shutdown releases the workers of the builder. The builder cannot be used after Shutdown.
	Shutdown() error
}

// Compute runs the builder on the sinks, reconstructing the paths when the config asks for it.
func Compute(ctx context.Context, b PathBuilder, cfg *config.Config, sinks []abstraction.SinkOccurrence) error {
	if cfg.ReconstructPaths {
		return b.ComputeTaintPaths(ctx, sinks)
	}
	return b.ComputeTaintSources(ctx, sinks)
}

// Kind is a path reconstruction algorithm
type Kind int

const (
	// Recursive walks back from the sinks recursively, without checking the calling contexts
	Recursive Kind = iota
	// ContextSensitive walks back from the sinks recursively, matching call sites with a shadow call stack
	ContextSensitive
	// ContextInsensitive propagates descriptors memoized in the abstractions
	ContextInsensitive
	// ContextInsensitiveSourceFinder computes which sources reach the sinks, never the paths
	ContextInsensitiveSourceFinder
)

// DefaultKind is the builder used when none is specified
const DefaultKind = ContextSensitive

// ErrUnsupportedKind is returned when a builder kind is unknown
var ErrUnsupportedKind = errors.New("unsupported path builder")

var kindNames = map[Kind]string{
	Recursive:                      "recursive",
	ContextSensitive:               "context-sensitive",
	ContextInsensitive:             "context-insensitive",
	ContextInsensitiveSourceFinder: "context-insensitive-source-finder",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the kind whose name is s (case-insensitive). The empty string is the DefaultKind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultKind, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	names := maps.Values(kindNames)
	slices.Sort(names)
	return 0, fmt.Errorf("%w %q, expected one of %s", ErrUnsupportedKind, s, strings.Join(names, ", "))
}

// Options configure the builders created by a Factory
type Options struct {
	// Logger is the logger of the builders. A default logger at the info level is used when nil.
	Logger *config.LogGroup

	// Sink receives the results. Each builder writes into a new *results.Results when nil.
	Sink results.Sink

	// Metrics records the activity of the builders. May be nil.
	Metrics *Metrics

	// MaxDepth bounds the call stack of the context-sensitive builder. Ignored if <= 0.
	MaxDepth int

	// FailOnInvariantViolation makes the builders return an error when they find a malformed abstraction. When
	// false, the abstraction is skipped.
	FailOnInvariantViolation bool
}

// Factory creates path builders of a given kind.
type Factory struct {
	Kind    Kind
	Options Options

	// TaskIDs is the counter of the task identifiers used to flag abstractions. It is shared by all the builders of
	// the factory, so that builders traversing the same abstraction graph never share a task identifier.
	TaskIDs atomic.Int64
}

// NewFactory returns a factory creating builders of the given kind.
func NewFactory(kind Kind, opts Options) *Factory {
	return &Factory{Kind: kind, Options: opts}
}

// NewBuilder returns a new builder running on maxThreads workers (see taskpool.ResolveThreadCount). The ICFG is
// used by the context-sensitive builders to identify call statements; a structural ICFG is used if it is nil.
func (f *Factory) NewBuilder(maxThreads int, cfg icfg.ICFG) (PathBuilder, error) {
	if _, ok := kindNames[f.Kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, f.Kind)
	}
	if cfg == nil {
		cfg = icfg.New(nil)
	}
	b := f.newBuilder(maxThreads)
	switch f.Kind {
	case Recursive:
		return newRecursiveBuilder(b, cfg, true, f.Options.MaxDepth), nil
	case ContextSensitive:
		return newRecursiveBuilder(b, cfg, false, f.Options.MaxDepth), nil
	case ContextInsensitive:
		return &ContextInsensitiveBuilder{builder: b}, nil
	default:
		return &SourceFinder{builder: b}, nil
	}
}

// NewBuilderFromConfig returns a builder as specified by the options of the config: path-builder, max-threads,
// max-depth and fail-on-invariant-violation.
func NewBuilderFromConfig(cfg *config.Config, logger *config.LogGroup, graph icfg.ICFG, sink results.Sink,
	metrics *Metrics) (PathBuilder, error) {
	kind, err := ParseKind(cfg.PathBuilder)
	if err != nil {
		return nil, err
	}
	f := NewFactory(kind, Options{
		Logger:                   logger,
		Sink:                     sink,
		Metrics:                  metrics,
		MaxDepth:                 cfg.MaxDepth,
		FailOnInvariantViolation: cfg.FailOnInvariantViolation,
	})
	return f.NewBuilder(cfg.MaxThreads, graph)
}

func (f *Factory) newBuilder(maxThreads int) *builder {
	logger := f.Options.Logger
	if logger == nil {
		logger = config.NewLogGroup(config.NewDefault())
	}
	sink := f.Options.Sink
	if sink == nil {
		sink = results.New()
	}
	return &builder{
		kind:     f.Kind,
		logger:   logger,
		pool:     taskpool.New(taskpool.ResolveThreadCount(maxThreads)),
		sink:     sink,
		metrics:  f.Options.Metrics.forKind(f.Kind),
		failFast: f.Options.FailOnInvariantViolation,
		taskIDs:  &f.TaskIDs,
	}
}

// builder contains the state shared by all the path builders
type builder struct {
	kind     Kind
	logger   *config.LogGroup
	pool     *taskpool.Pool
	sink     results.Sink
	metrics  kindMetrics
	failFast bool
	taskIDs  *atomic.Int64

	// propagations counts the abstractions visited by the current computation
	propagations atomic.Int64
}

// Results returns the sink the results are written to
func (b *builder) Results() results.Sink {
	return b.sink
}

// Shutdown releases the workers of the builder
func (b *builder) Shutdown() error {
	return b.pool.Shutdown()
}

// Propagations returns the number of abstractions visited by the last computation
func (b *builder) Propagations() int64 {
	return b.propagations.Load()
}

func (b *builder) nextTaskID() int {
	return int(b.taskIDs.Add(1) - 1)
}

// start prepares a computation over the sinks, and returns the deduplicated sinks.
func (b *builder) start(sinks []abstraction.SinkOccurrence) []abstraction.SinkOccurrence {
	sinks = funcutil.Unique(sinks)
	b.propagations.Store(0)
	b.logger.Infof("Obtained %d connections between sources and sinks", len(sinks))
	b.metrics.sinks(len(sinks))
	return sinks
}

// await blocks until all the tasks of the batch of the computation started at start are done.
func (b *builder) await(ctx context.Context, batch *taskpool.Batch, start time.Time) error {
	err := batch.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			b.logger.Errorf("Could not wait for path executor completion: %v", err)
			return err
		}
		return fmt.Errorf("%s path reconstruction failed: %w", b.kind, err)
	}
	b.logger.Infof("Path processing took %.3f seconds in total for %d propagations",
		time.Since(start).Seconds(), b.propagations.Load())
	return nil
}

// visit counts the visit of an abstraction
func (b *builder) visit() {
	b.propagations.Add(1)
	b.metrics.propagation()
}

func (b *builder) emit(r results.Result) {
	b.metrics.result()
	b.sink.Add(r)
}

// violation handles an invariant violation found during a traversal. It returns the error when the builder fails
// on violations; otherwise the error is logged and nil is returned, and the caller skips the abstraction.
func (b *builder) violation(err error) error {
	if b.failFast {
		return err
	}
	b.logger.Errorf("skipping malformed abstraction: %s", formatutil.Sanitize(err.Error()))
	return nil
}

// warn logs a warning about a capability the builder does not have
func (b *builder) warn(format string, args ...any) {
	b.logger.Warnf("%s", formatutil.Yellow(fmt.Sprintf(format, args...)))
}
