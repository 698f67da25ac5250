// Package textgen trains a Markov chain on tokenized corpus events and
// serves text generation tasks from it.
package textgen

import (
	"context"
	"encoding/json"
	"time"

	"github.com/makkenzo/codename-symbiont/component"
	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
	"github.com/makkenzo/codename-symbiont/pkg/markov"
	"github.com/makkenzo/codename-symbiont/pkg/timestamp"
	"github.com/makkenzo/codename-symbiont/service"
)

// Worker keeps an in-memory Markov model. Training and generation share the
// model; generation before any training produces empty text.
type Worker struct {
	*service.Base
	bus   natsclient.Bus
	chain *markov.Chain

	trainLoop *dispatch.Loop[envelope.TokenizedText]
	genLoop   *dispatch.Loop[envelope.GenerateTextTask]
}

// New builds the text generation worker seeded from the wall clock.
func New(deps component.Dependencies) *Worker {
	logger := deps.GetLoggerWithComponent("textgen")

	w := &Worker{
		Base: service.NewBase("textgen",
			service.WithLogger(logger),
			service.WithMetrics(deps.MetricsRegistry)),
		bus:   deps.Bus,
		chain: markov.New(time.Now().UnixNano()),
	}

	w.trainLoop = dispatch.New("textgen-train", envelope.SubjectTokenizedText, deps.Bus, w.handleTrain,
		dispatch.WithLogger[envelope.TokenizedText](logger),
		dispatch.WithMetrics[envelope.TokenizedText](deps.DispatchMetrics))
	w.genLoop = dispatch.New("textgen-generate", envelope.SubjectGenerateText, deps.Bus, w.handleGenerate,
		dispatch.WithLogger[envelope.GenerateTextTask](logger),
		dispatch.WithMetrics[envelope.GenerateTextTask](deps.DispatchMetrics))
	return w
}

// Start brings up the base service and both loops.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Base.Start(ctx); err != nil {
		return err
	}
	if err := w.trainLoop.Start(ctx); err != nil {
		return err
	}
	return w.genLoop.Start(ctx)
}

// Stop tears down both loops, then the base service.
func (w *Worker) Stop(timeout time.Duration) error {
	var firstErr error
	for _, stop := range []func(time.Duration) error{w.trainLoop.Stop, w.genLoop.Stop, w.Base.Stop} {
		if err := stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// States reports the number of distinct chain states learned so far.
func (w *Worker) States() int { return w.chain.States() }

func (w *Worker) handleTrain(_ context.Context, msg envelope.TokenizedText) error {
	w.RecordActivity()
	for _, sentence := range msg.Sentences {
		w.chain.Train(sentence)
	}
	w.Logger().Debug("trained on document",
		"original_id", msg.OriginalID, "sentences", len(msg.Sentences), "states", w.chain.States())
	return nil
}

func (w *Worker) handleGenerate(ctx context.Context, task envelope.GenerateTextTask) error {
	w.RecordActivity()
	if err := task.Validate(); err != nil {
		return err
	}

	prompt := ""
	if task.Prompt != nil {
		prompt = *task.Prompt
	}
	if !w.chain.Trained() {
		w.Logger().Warn("generation requested before any training", "task_id", task.TaskID)
	}
	text := w.chain.Generate(int(task.MaxLength), prompt)

	out := envelope.GeneratedText{
		OriginalTaskID: task.TaskID,
		GeneratedText:  text,
		TimestampMs:    timestamp.Now(),
	}
	data, err := json.Marshal(out)
	if err != nil {
		return symerrors.WrapInvalid(err, "textgen", "handleGenerate", "encode generated text")
	}
	if err := w.bus.Publish(ctx, envelope.SubjectTextGenerated, data); err != nil {
		return err
	}
	w.Logger().Info("published generated text", "task_id", task.TaskID, "chars", len(text))
	return nil
}
