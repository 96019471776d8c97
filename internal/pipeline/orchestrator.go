// Package pipeline sequences one user utterance through extraction,
// crawling, and generation, then persists the result. One run is live at a
// time; a superseded run may finish its network calls but can no longer
// touch shared state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docentgo/internal/models"
	"docentgo/internal/service/crawl"
	"docentgo/internal/service/extract"
	"docentgo/internal/service/inference"
	"docentgo/internal/state"
	"docentgo/internal/status"
)

// singleTurnCrawlDepth bounds the crawl issued for a URL found in the
// utterance. The user's configured crawl depth belongs to link mode, not
// to single-turn crawling.
const singleTurnCrawlDepth = 1

const (
	noReadableTextMessage  = "I processed the file, but I couldn't find any readable text."
	connectivityErrMessage = "Error connecting to server or processing request."
)

// ConversationStore is the slice of the durable store the pipeline writes
// through.
type ConversationStore interface {
	CreateConversation(ctx context.Context, id, title string) error
	AppendMessage(ctx context.Context, msg models.Message) (int64, error)
}

// PreferenceSource supplies the current preferences snapshot.
type PreferenceSource interface {
	Get() models.Preferences
}

// Attachment is a file the user attached to the utterance.
type Attachment struct {
	Name string
	Data []byte
}

// Orchestrator owns the run token and drives one pipeline run at a time.
type Orchestrator struct {
	store     ConversationStore
	prefs     PreferenceSource
	app       *state.AppState
	reporter  *status.Reporter
	extractor extract.Extractor
	crawler   crawl.Crawler
	engine    inference.Engine
	logger    zerolog.Logger

	// Phase mirrors the live run's position for observers. Stale runs
	// cannot write to it.
	Phase *state.Cell[Phase]

	token atomic.Int64

	// newID is swappable in tests, the same way the teacher swaps its
	// service factories.
	newID func() string
}

func NewOrchestrator(
	store ConversationStore,
	prefs PreferenceSource,
	app *state.AppState,
	reporter *status.Reporter,
	extractor extract.Extractor,
	crawler crawl.Crawler,
	engine inference.Engine,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		prefs:     prefs,
		app:       app,
		reporter:  reporter,
		extractor: extractor,
		crawler:   crawler,
		engine:    engine,
		logger:    logger,
		Phase:     state.NewCell(PhaseIdle),
		newID:     uuid.NewString,
	}
}

// OpenConversation supersedes any live run and loads the conversation.
func (o *Orchestrator) OpenConversation(ctx context.Context, id string) error {
	o.token.Add(1)
	return o.app.LoadConversation(ctx, id)
}

// NewConversation supersedes any live run and clears the active state.
func (o *Orchestrator) NewConversation() {
	o.token.Add(1)
	o.app.StartNewConversation()
}

// Send runs the whole pipeline for one utterance. It blocks until the run
// reaches Done or Failed (or is superseded); callers that need the shell
// responsive run it in its own goroutine. Starting a Send supersedes any
// run still in flight.
func (o *Orchestrator) Send(ctx context.Context, text string, att *Attachment) {
	tok := o.token.Add(1)
	o.reporter.Reset()
	o.setPhase(tok, PhaseIdle, "Thinking...")

	// The user's turn shows up immediately, with the attachment named the
	// way the transcript renders it.
	display := text
	if att != nil {
		display = fmt.Sprintf("%s\n\n[Attached File: %s]", text, att.Name)
	}
	history := o.app.ActiveMessages.Get()
	userMsg := models.Message{
		Role:      models.RoleUser,
		Content:   display,
		CreatedAt: time.Now().UTC(),
	}
	o.app.AppendLocal(userMsg)

	activeID := o.app.ActiveConversationID.Get()
	if activeID != "" {
		userMsg.ConversationID = activeID
		o.persist(userMsg)
	}

	var extractedContext string
	if att != nil {
		o.setPhase(tok, PhaseExtractingFile, "Analyzing document...")
		o.log(tok, "Uploading: %s", att.Name)

		extracted, err := o.extractor.Extract(ctx, att.Name, att.Data)
		if err != nil {
			o.logger.Error().Err(err).Str("file", att.Name).Msg("file extraction failed")
			o.log(tok, "Error uploading file")
			o.fail(tok)
			return
		}
		if isBlank(extracted) {
			o.log(tok, "Warning: No text found in file")
			o.appendAssistant(tok, models.Message{
				Role:      models.RoleAssistant,
				Content:   noReadableTextMessage,
				CreatedAt: time.Now().UTC(),
			})
			o.fail(tok)
			return
		}
		extractedContext = extracted
		o.log(tok, "Success: Extracted %d chars", len(extracted))
	}

	if url := firstURL(text); url != "" {
		o.setPhase(tok, PhaseCrawling, "Accessing URL...")
		o.log(tok, "Found URL: %s", url)

		if o.crawler == nil {
			o.log(tok, "Error: Could not crawl URL.")
		} else if logs, err := o.crawler.Crawl(ctx, url, singleTurnCrawlDepth); err != nil {
			// Crawl failure is non-fatal: partial context beats no answer.
			o.logger.Warn().Err(err).Str("url", url).Msg("crawl failed")
			if errors.Is(err, crawl.ErrUnreachable) {
				o.log(tok, "Network Error during crawling.")
			} else {
				o.log(tok, "Error: Could not crawl URL.")
			}
		} else {
			o.appendLog(tok, logs)
			o.status(tok, "Knowledge Base Updated.")
		}
	}

	o.setPhase(tok, PhaseGenerating, "Generating Answer...")
	o.log(tok, "Generating Answer...")

	resp, err := o.engine.Generate(ctx, inference.Request{
		Query:       directiveQuery(o.prefs.Get(), text),
		History:     history,
		FileContext: extractedContext,
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("inference failed")
		// The failure lands in the transcript, not just the log.
		o.appendAssistant(tok, models.Message{
			Role:      models.RoleAssistant,
			Content:   connectivityErrMessage,
			CreatedAt: time.Now().UTC(),
		})
		o.fail(tok)
		return
	}
	if !o.current(tok) {
		return
	}

	// First successful reply for a fresh chat: the conversation comes into
	// existence now, never on a failed attempt, so aborted sends leave no
	// empty conversation behind.
	activeID = o.app.ActiveConversationID.Get()
	if activeID == "" {
		activeID = o.newID()
		if err := o.store.CreateConversation(ctx, activeID, deriveTitle(text)); err != nil {
			o.logger.Warn().Err(err).Msg("conversation not persisted, continuing in memory")
		}
		// The durable write can block long enough for a newer run to take
		// over; a superseded run must not adopt its conversation.
		if !o.current(tok) {
			return
		}
		o.persist(models.Message{
			ConversationID: activeID,
			Role:           models.RoleUser,
			Content:        text,
			CreatedAt:      userMsg.CreatedAt,
		})
		o.app.AdoptConversation(activeID)
	}

	aiMsg := models.Message{
		ConversationID: activeID,
		Role:           models.RoleAssistant,
		Content:        resp.Answer,
		Sources:        resp.Sources,
		CreatedAt:      time.Now().UTC(),
	}
	if !o.current(tok) {
		return
	}
	o.persist(aiMsg)
	o.appendAssistant(tok, aiMsg)
	o.setPhase(tok, PhaseDone, "Done")
}

// current reports whether tok still owns the shared state.
func (o *Orchestrator) current(tok int64) bool {
	return o.token.Load() == tok
}

func (o *Orchestrator) setPhase(tok int64, phase Phase, label string) {
	if !o.current(tok) {
		return
	}
	o.Phase.Set(phase)
	o.reporter.SetStatus(label)
}

func (o *Orchestrator) status(tok int64, label string) {
	if o.current(tok) {
		o.reporter.SetStatus(label)
	}
}

func (o *Orchestrator) log(tok int64, format string, args ...any) {
	if o.current(tok) {
		o.reporter.Logf(format, args...)
	}
}

func (o *Orchestrator) appendLog(tok int64, lines []string) {
	if o.current(tok) {
		o.reporter.Append(lines)
	}
}

func (o *Orchestrator) fail(tok int64) {
	if o.current(tok) {
		o.Phase.Set(PhaseFailed)
	}
}

func (o *Orchestrator) appendAssistant(tok int64, msg models.Message) {
	if o.current(tok) {
		o.app.AppendLocal(msg)
	}
}

// persist writes through to the store, downgrading store trouble to a log
// line; the in-memory conversation continues either way.
func (o *Orchestrator) persist(msg models.Message) {
	if msg.ConversationID == "" {
		return
	}
	if _, err := o.store.AppendMessage(context.Background(), msg); err != nil {
		o.logger.Warn().Err(err).Msg("message not persisted, continuing in memory")
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
